package profile

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// NameStrategy is one way of locating the account name
type NameStrategy struct {
	Name     string
	Selector string
}

// DefaultNameStrategies are tried in order. The first is the exact layout of
// the default theme; the rest survive theme tweaks.
func DefaultNameStrategies() []NameStrategy {
	return []NameStrategy{
		{Name: "layout", Selector: "#ct > div > div:nth-of-type(2) > div > div:nth-of-type(1) > div:nth-of-type(1) > h2"},
		{Name: "header", Selector: "div[class*='h'] > h2"},
		{Name: "title", Selector: "h2[class*='mt']"},
		{Name: "profile", Selector: "div[id*='profile'] h2"},
	}
}

// FindName returns the text of the first strategy that yields something
func FindName(doc *goquery.Document, strategies []NameStrategy) string {
	for _, s := range strategies {
		if name := clean(doc.Find(s.Selector).First().Text()); name != "" {
			return name
		}
	}
	return UnknownName
}

var statKeywords = []string{"积分", "威望", "车票", "贡献"}

// ParseStats reads the credit counters. The #psts list is preferred; without
// it every element whose own text mentions a counter is considered.
func ParseStats(doc *goquery.Document) Stats {
	stats := Stats{
		Points:       Unknown,
		Prestige:     Unknown,
		Tickets:      Unknown,
		Contribution: Unknown,
	}

	if container := doc.Find("#psts"); container.Length() > 0 {
		container.Find("li").Each(func(_ int, li *goquery.Selection) {
			assignStat(&stats, clean(li.Text()))
		})
		return stats
	}

	doc.Find("body *").Each(func(_ int, s *goquery.Selection) {
		if !mentionsStat(ownText(s)) {
			return
		}
		assignStat(&stats, clean(s.Text()))
	})
	return stats
}

func assignStat(stats *Stats, text string) {
	switch {
	case strings.Contains(text, "积分"):
		stats.Points = text
	case strings.Contains(text, "威望"):
		stats.Prestige = text
	case strings.Contains(text, "车票"):
		stats.Tickets = text
	case strings.Contains(text, "贡献"):
		stats.Contribution = text
	}
}

func mentionsStat(text string) bool {
	for _, k := range statKeywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// ownText is the text of the node's direct text children
func ownText(s *goquery.Selection) string {
	var b strings.Builder
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			b.WriteString(c.Text())
		}
	})
	return b.String()
}

func clean(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
