package bridge

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin-automation/browser"
	"checkin-automation/logger"
)

type recordingPage struct {
	calls   []string
	cookies []browser.Cookie
}

func (p *recordingPage) Navigate(url string) error {
	p.calls = append(p.calls, "navigate "+url)
	return nil
}
func (p *recordingPage) WaitElement(string, time.Duration) error { return nil }
func (p *recordingPage) Attribute(string, string) (string, error) { return "", nil }
func (p *recordingPage) HTML() (string, error) { return "", nil }
func (p *recordingPage) Click(string) error { return nil }
func (p *recordingPage) Reload() error { return nil }
func (p *recordingPage) Screenshot(string) error { return nil }
func (p *recordingPage) Cookies() (map[string]string, error) { return nil, nil }
func (p *recordingPage) ClearCookies() error {
	p.calls = append(p.calls, "clear")
	p.cookies = nil
	return nil
}
func (p *recordingPage) SetCookies(cookies []browser.Cookie) error {
	p.calls = append(p.calls, "set")
	p.cookies = append(p.cookies, cookies...)
	return nil
}

func TestApplyInstallsExactlyTheBundle(t *testing.T) {
	page := &recordingPage{}
	cookies := map[string]string{"auth": "token", "saltkey": "s1"}

	err := New(0, logger.Discard()).Apply(context.Background(), page, "https://xsijishe.com", cookies)
	require.NoError(t, err)

	assert.Equal(t, []string{"navigate https://xsijishe.com", "clear", "set"}, page.calls)

	sort.Slice(page.cookies, func(i, j int) bool { return page.cookies[i].Name < page.cookies[j].Name })
	assert.Equal(t, []browser.Cookie{
		{Name: "auth", Value: "token", Domain: "xsijishe.com", Path: "/"},
		{Name: "saltkey", Value: "s1", Domain: "xsijishe.com", Path: "/"},
	}, page.cookies)
}

func TestApplyDoesNotRetainCallerMap(t *testing.T) {
	page := &recordingPage{}
	cookies := map[string]string{"auth": "token"}

	require.NoError(t, New(0, logger.Discard()).Apply(context.Background(), page, "https://xsijishe.com/", cookies))
	cookies["auth"] = "changed"

	assert.Equal(t, "token", page.cookies[0].Value)
}

func TestApplyRejectsBadOrigin(t *testing.T) {
	err := New(0, logger.Discard()).Apply(context.Background(), &recordingPage{}, "::", nil)
	assert.Error(t, err)
}

func TestApplyHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	page := &recordingPage{}

	err := New(time.Minute, logger.Discard()).Apply(ctx, page, "https://xsijishe.com", map[string]string{"a": "b"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"navigate https://xsijishe.com"}, page.calls)
}
