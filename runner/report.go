package runner

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"checkin-automation/checkin"
	"checkin-automation/profile"
)

const (
	LineLoginOK        = "✔️ 登录成功"
	LineLoginFailed    = "❌ 登录失败，脚本结束"
	LineLoginTransient = "⚠️ 登录接口返回服务器错误，可稍后重试"
	LineCheckInOK      = "✔️ 签到操作完成"
	LineCheckInFailed  = "❌ 签到操作失败"
	LineInfoMissing    = "⚠️ 未能获取用户信息，请检查日志输出"

	accountBannerWidth = 24
)

// Report collects the lines of one run's notification
type Report struct {
	Title string
	lines []string
}

// NewReport creates an empty report
func NewReport(title string) *Report {
	return &Report{Title: title}
}

// Add appends a line; blank lines are dropped
func (r *Report) Add(line string) {
	if line = strings.TrimSpace(line); line != "" {
		r.lines = append(r.lines, line)
	}
}

// Lines returns a copy of the collected lines
func (r *Report) Lines() []string {
	return append([]string(nil), r.lines...)
}

// Body is the notification text
func (r *Report) Body() string {
	return strings.TrimSpace(strings.Join(r.lines, "\n"))
}

// FormatInfo renders the account block of the report
func FormatInfo(info *profile.Info, status checkin.Status) string {
	var b strings.Builder
	b.WriteString(center(fmt.Sprintf("账户【%s】", info.Name), accountBannerWidth, '='))
	b.WriteString("\n")
	fmt.Fprintf(&b, "签到状态: %s \n", status.Label())
	fmt.Fprintf(&b, "签到排名：%s\n", info.Sign.Rank)
	fmt.Fprintf(&b, "签到等级：Lv.%s\n", info.Sign.Level)
	fmt.Fprintf(&b, "连续签到：%s 天\n", info.Sign.StreakDays)
	fmt.Fprintf(&b, "签到总数：%s 天\n", info.Sign.TotalDays)
	fmt.Fprintf(&b, "签到奖励：%s\n", info.Sign.Reward)
	b.WriteString(" \n")
	fmt.Fprintf(&b, "当前积分: %s\n", info.Stats.Points)
	fmt.Fprintf(&b, "当前威望: %s\n", info.Stats.Prestige)
	fmt.Fprintf(&b, "当前车票: %s\n", info.Stats.Tickets)
	fmt.Fprintf(&b, "当前贡献: %s\n", info.Stats.Contribution)
	return b.String()
}

// center pads s with fill to width runes; an odd margin puts the extra
// rune on the right unless both the margin and width are odd.
func center(s string, width int, fill rune) string {
	margin := width - utf8.RuneCountInString(s)
	if margin <= 0 {
		return s
	}
	left := margin/2 + (margin & width & 1)
	pad := string(fill)
	return strings.Repeat(pad, left) + s + strings.Repeat(pad, margin-left)
}
