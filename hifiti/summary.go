package hifiti

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	unknown          = "未知"
	fallbackFeedback = "站点未返回明确提示，请检查账号或网络情况"
)

// StatCards are the site-wide counters on the sign page
type StatCards struct {
	TotalSigned string
	TodaySigned string
	TodayTop    string
}

// RankRow is one line of today's sign table
type RankRow struct {
	Rank      string
	Name      string
	Reward    string
	Extra     string
	Time      string
	TotalDays string
	Streak    string
}

func parse(html string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	return doc
}

// LoginFeedback pulls the error shown on a failed login page
func LoginFeedback(html string) string {
	doc := parse(html)
	if doc == nil {
		return fallbackFeedback
	}
	for _, selector := range []string{"div.alert", "div.invalid-feedback"} {
		if text := strings.TrimSpace(doc.Find(selector).First().Text()); text != "" {
			return strings.Join(strings.Fields(text), " ")
		}
	}
	return fallbackFeedback
}

// JSVar reads a single-quoted string assigned with `var name = '...';`
func JSVar(html, name string) string {
	re := regexp.MustCompile(`var\s+` + regexp.QuoteMeta(name) + `\s*=\s*'([^']*)';`)
	if m := re.FindStringSubmatch(html); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// ParseStatCards reads the labelled counter cards. Missing cards stay empty.
func ParseStatCards(doc *goquery.Document) StatCards {
	var cards StatCards
	targets := map[string]*string{
		"签到人数": &cards.TotalSigned,
		"今日签到": &cards.TodaySigned,
		"今日第一": &cards.TodayTop,
	}
	doc.Find("span").Each(func(_ int, s *goquery.Selection) {
		dst, ok := targets[strings.TrimSpace(s.Text())]
		if !ok || *dst != "" {
			return
		}
		*dst = strings.TrimSpace(s.NextAllFiltered("b").First().Text())
	})
	return cards
}

func (c StatCards) empty() bool {
	return c.TotalSigned == "" && c.TodaySigned == "" && c.TodayTop == ""
}

// FindRank returns the sign table row for name
func FindRank(doc *goquery.Document, name string) (RankRow, bool) {
	var row RankRow
	found := false
	if name == "" {
		return row, false
	}

	rankPattern := regexp.MustCompile(`^\d+$`)
	doc.Find("tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		cells := tr.Find("td")
		if cells.Length() < 7 {
			return true
		}
		text := func(i int) string {
			return strings.TrimSpace(cells.Eq(i).Text())
		}
		if !rankPattern.MatchString(text(0)) || text(1) != name {
			return true
		}
		row = RankRow{
			Rank:      text(0),
			Name:      text(1),
			Reward:    text(2),
			Extra:     text(3),
			Time:      text(4),
			TotalDays: text(5),
			Streak:    text(6),
		}
		found = true
		return false
	})
	return row, found
}

// BuildSummary renders the notification body
func BuildSummary(sign SignResult, html, displayName string) string {
	parts := []string{"签到结果：" + sign.Message}

	if doc := parse(html); html != "" && doc != nil {
		if status := JSVar(html, "s1"); status != "" {
			parts = append(parts, "按钮状态："+status)
		}
		if streak := JSVar(html, "s3"); streak != "" {
			parts = append(parts, streak)
		}

		if cards := ParseStatCards(doc); !cards.empty() {
			parts = append(parts, "站点统计："+strings.Join([]string{
				"累计签到 " + orUnknown(cards.TotalSigned),
				"今日签到 " + orUnknown(cards.TodaySigned),
				"今日第一 " + orUnknown(cards.TodayTop),
			}, " | "))
		}

		if row, ok := FindRank(doc, displayName); ok {
			parts = append(parts, "个人记录："+strings.Join([]string{
				"今日排名 " + row.Rank,
				"奖励 " + row.Reward,
				"额外奖励 " + row.Extra,
				"累计签到 " + row.TotalDays,
				"连续签到 " + row.Streak,
			}, " | "))
		}
	}

	if sign.Code != 0 && !strings.Contains(sign.Message, "成功") {
		parts = append(parts, "⚠️ 请检查账号状态或稍后重试")
	}

	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}
