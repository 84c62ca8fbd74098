package runner

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin-automation/auth"
	"checkin-automation/bridge"
	"checkin-automation/browser"
	"checkin-automation/checkin"
	"checkin-automation/logger"
	"checkin-automation/profile"
	"checkin-automation/retry"
)

const counters = `
<input type="hidden" id="qiandaobtnnum" value="3">
<input type="hidden" id="lxdays" value="10">
<input type="hidden" id="lxtdays" value="120">
<input type="hidden" id="lxlevel" value="4">
<input type="hidden" id="lxreward" value="积分+5">`

const profileHTML = `<html><body><div id="ct"><div class="hm"><h2>老司机</h2></div>
<ul id="psts"><li><em>积分</em>2048</li><li><em>威望</em>30</li><li><em>车票</em>99</li><li><em>贡献</em>8</li></ul>
</div></body></html>`

// forumPage is an in-memory rendering of the forum. Pages that need a
// session only render once the auth cookie is installed.
type forumPage struct {
	origin  string
	current string
	cookies map[string]browser.Cookie
	signed  bool
	clicks  int
}

func (p *forumPage) html() string {
	if _, ok := p.cookies["auth"]; !ok {
		return `<html><body><a href="/member.php?mod=logging&action=login">登录</a></body></html>`
	}
	switch p.current {
	case p.origin + "/k_misign-sign.html":
		if p.signed {
			return `<html><body><div class="tip">签到成功</div><a id="JD_sign">签到</a>` + counters + `</body></html>`
		}
		return `<html><body><a id="JD_sign" href="#">点击签到</a>` + counters + `</body></html>`
	case p.origin + "/home.php?mod=space":
		return profileHTML
	}
	return `<html><body>home</body></html>`
}

func (p *forumPage) has(selector string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.html()))
	return err == nil && doc.Find(selector).Length() > 0
}

func (p *forumPage) Navigate(url string) error {
	p.current = url
	return nil
}

func (p *forumPage) WaitElement(selector string, _ time.Duration) error {
	if !p.has(selector) {
		return browser.ErrElementNotFound
	}
	return nil
}

func (p *forumPage) Attribute(string, string) (string, error) { return "", nil }
func (p *forumPage) HTML() (string, error) { return p.html(), nil }

func (p *forumPage) Click(selector string) error {
	if !p.has(selector) {
		return browser.ErrElementNotFound
	}
	p.clicks++
	p.signed = true
	return nil
}

func (p *forumPage) Reload() error { return nil }
func (p *forumPage) Screenshot(string) error { return nil }
func (p *forumPage) Cookies() (map[string]string, error) { return nil, nil }

func (p *forumPage) ClearCookies() error {
	p.cookies = map[string]browser.Cookie{}
	return nil
}

func (p *forumPage) SetCookies(cookies []browser.Cookie) error {
	for _, c := range cookies {
		p.cookies[c.Name] = c
	}
	return nil
}

type forumLauncher struct{ page *forumPage }

func (l *forumLauncher) Launch(context.Context) (browser.Browser, error) { return l, nil }
func (l *forumLauncher) NewPage(context.Context) (browser.Page, error) { return l.page, nil }
func (l *forumLauncher) Close() error { return nil }

type formFetcher struct{ form *auth.LoginForm }

func (f formFetcher) Fetch(context.Context) (*auth.LoginForm, error) { return f.form, nil }

type exactSolver struct{}

func (exactSolver) Recognize(context.Context, string) string { return "ab3d" }

func forumServer(t *testing.T) *httptest.Server {
	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewGray(image.Rect(0, 0, 4, 4))))

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/misc.php" && r.URL.Query().Get("action") == "check":
			w.Write([]byte("succeed"))
		case r.URL.Path == "/misc.php":
			w.Header().Set("Content-Type", "image/png")
			w.Write(img.Bytes())
		case r.URL.Path == "/member.php":
			http.SetCookie(w, &http.Cookie{Name: "auth", Value: "session-token", Path: "/"})
			w.Write([]byte("欢迎您回来，老司机"))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestRunEndToEnd(t *testing.T) {
	srv := forumServer(t)
	defer srv.Close()

	log := logger.Discard()
	policy := retry.DefaultPolicy(log)
	policy.Sleep = func(context.Context, time.Duration) {}

	session, err := auth.NewSession(
		auth.Credentials{Username: "driver", Password: "secret"},
		auth.Options{BaseURL: srv.URL, Timeout: 5 * time.Second},
		formFetcher{form: &auth.LoginForm{
			Referer:     srv.URL + "/member.php?mod=logging&action=login",
			FormHash:    "f0rmh4sh",
			SecCodeHash: "cSAbc1",
			Cookies:     map[string]string{"saltkey": "s1"},
		}},
		exactSolver{}, policy, log,
	)
	require.NoError(t, err)

	page := &forumPage{origin: srv.URL, cookies: map[string]browser.Cookie{}}
	shots := t.TempDir()
	notifier := &recordingNotifier{}

	r := New(
		session,
		&forumLauncher{page: page},
		bridge.New(0, log),
		checkin.NewDriver(checkin.Options{BaseURL: srv.URL, SignPath: "/k_misign-sign.html", ScreenshotDir: shots}, nil, log),
		profile.NewExtractor(profile.Options{BaseURL: srv.URL, SignPath: "/k_misign-sign.html", ScreenshotDir: shots}, nil, log),
		notifier, log,
	)

	result := r.Run(context.Background())

	require.Len(t, notifier.bodies, 1)
	body := notifier.bodies[0]

	assert.True(t, result.LoggedIn)
	assert.Equal(t, checkin.StatusJustCompleted, result.Status)
	assert.Equal(t, 1, page.clicks)
	assert.Equal(t, "session-token", page.cookies["auth"].Value)
	assert.Equal(t, "127.0.0.1", page.cookies["auth"].Domain)
	assert.Len(t, page.cookies, 2)

	assert.Contains(t, body, LineCheckInOK)
	assert.Contains(t, body, "账户【老司机】")
	assert.Contains(t, body, "签到状态: 签到成功")
	assert.Contains(t, body, "当前积分: 积分2048")
	assert.Contains(t, body, "当前贡献: 贡献8")
	assert.NotContains(t, body, profile.Unknown)
}
