package hifiti

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin-automation/logger"
)

const signPageHTML = `<html><head><script>
var s1 = '已签到';
var s3 = '连续签到 12 天';
</script></head><body>
<div class="card"><span>签到人数</span><br> <b>8848</b></div>
<div class="card"><span>今日签到</span><br> <b>321</b></div>
<div class="card"><span>今日第一</span><br> <b>early_bird</b></div>
<table>
<tr><th>排名</th><th>用户</th></tr>
<tr>
 <td width="60px">1</td> <td width="100px">early_bird</td> <td>5 金币</td> <td>2 金币</td> <td>00:00:01</td> <td>300</td> <td>300</td>
</tr>
<tr>
 <td width="60px">57</td> <td width="100px"> listener </td> <td>3 金币</td> <td>0 金币</td> <td>08:30:12</td> <td>120</td> <td>12</td>
</tr>
</table>
</body></html>`

type notifyRecorder struct {
	titles []string
	bodies []string
}

func (r *notifyRecorder) Send(_ context.Context, title, body string) {
	r.titles = append(r.titles, title)
	r.bodies = append(r.bodies, body)
}

type fakeForum struct {
	uid        string
	loginPage  string
	signAnswer string
	bootstraps int
	signs      int
	gotEmail   string
	gotXHR     string
}

func (f *fakeForum) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/user-login.htm" && r.Method == http.MethodGet:
			f.bootstraps++
			http.SetCookie(w, &http.Cookie{Name: "bbs_sid", Value: "sid", Path: "/"})
			w.Write([]byte("<form></form>"))
		case r.URL.Path == "/user-login.htm":
			r.ParseForm()
			f.gotEmail = r.PostForm.Get("email")
			if f.uid != "" {
				http.SetCookie(w, &http.Cookie{Name: "bbs_uid", Value: f.uid, Path: "/"})
			}
			w.Write([]byte(f.loginPage))
		case r.URL.Path == "/sg_sign.htm" && r.Method == http.MethodPost:
			f.signs++
			f.gotXHR = r.Header.Get("X-Requested-With")
			w.Write([]byte(f.signAnswer))
		case r.URL.Path == "/sg_sign.htm":
			w.Write([]byte(signPageHTML))
		default:
			http.NotFound(w, r)
		}
	})
}

func newTestClient(t *testing.T, base string) *Client {
	t.Helper()
	c, err := NewClient(Options{
		BaseURL:     base + "/",
		Username:    "me@example.com",
		Password:    "pw",
		DisplayName: "listener",
		Timeout:     5 * time.Second,
	}, logger.Discard())
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) }
	return c
}

func TestRunSuccess(t *testing.T) {
	forum := &fakeForum{uid: "1024", signAnswer: `{"code":"0","message":"签到成功，获得 3 金币"}`}
	srv := httptest.NewServer(forum.handler())
	defer srv.Close()

	n := &notifyRecorder{}
	body := newTestClient(t, srv.URL).Run(context.Background(), n)

	require.Len(t, n.bodies, 1)
	assert.Equal(t, "HiFiTi 签到 - 2026-10-19", n.titles[0])
	assert.Equal(t, body, n.bodies[0])
	assert.Equal(t, 1, forum.bootstraps)
	assert.Equal(t, "me@example.com", forum.gotEmail)
	assert.Equal(t, "XMLHttpRequest", forum.gotXHR)

	expected := strings.Join([]string{
		"签到结果：签到成功，获得 3 金币",
		"按钮状态：已签到",
		"连续签到 12 天",
		"站点统计：累计签到 8848 | 今日签到 321 | 今日第一 early_bird",
		"个人记录：今日排名 57 | 奖励 3 金币 | 额外奖励 0 金币 | 累计签到 120 | 连续签到 12",
	}, "\n")
	assert.Equal(t, expected, body)
}

func TestRunLoginFailure(t *testing.T) {
	forum := &fakeForum{loginPage: `<div class="alert alert-danger"> 密码错误 </div>`}
	srv := httptest.NewServer(forum.handler())
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	result := c.Login(context.Background())
	assert.False(t, result.Success)
	assert.Equal(t, "密码错误", result.ErrorMessage)

	n := &notifyRecorder{}
	c.Run(context.Background(), n)

	require.Len(t, n.bodies, 1)
	assert.Equal(t, LineLoginFailed, n.bodies[0])
	assert.Zero(t, forum.signs)
}

func TestLoginZeroUIDIsFailure(t *testing.T) {
	forum := &fakeForum{uid: "0", loginPage: "<html></html>"}
	srv := httptest.NewServer(forum.handler())
	defer srv.Close()

	result := newTestClient(t, srv.URL).Login(context.Background())

	assert.False(t, result.Success)
	assert.Equal(t, fallbackFeedback, result.ErrorMessage)
}

func TestSignNonJSON(t *testing.T) {
	forum := &fakeForum{uid: "1", signAnswer: "<html>" + strings.Repeat("x", 300)}
	srv := httptest.NewServer(forum.handler())
	defer srv.Close()

	result := newTestClient(t, srv.URL).Sign(context.Background())

	assert.Equal(t, -1, result.Code)
	assert.True(t, strings.HasPrefix(result.Message, "签到接口返回异常：<html>"))
	assert.Len(t, []rune(strings.TrimPrefix(result.Message, "签到接口返回异常：")), 200)
}

func TestSignNumericAndBadCodes(t *testing.T) {
	forum := &fakeForum{signAnswer: `{"code":0,"message":""}`}
	srv := httptest.NewServer(forum.handler())
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	assert.Equal(t, SignResult{Code: 0, Message: "站点未返回消息"}, c.Sign(context.Background()))

	forum.signAnswer = `{"code":"abc","message":"今天已经签过啦"}`
	assert.Equal(t, SignResult{Code: -1, Message: "今天已经签过啦"}, c.Sign(context.Background()))

	forum.signAnswer = `{"message":"未登录"}`
	assert.Equal(t, -1, c.Sign(context.Background()).Code)
}

func TestBuildSummaryWarnsOnFailure(t *testing.T) {
	summary := BuildSummary(SignResult{Code: -1, Message: "签到请求异常"}, "", "me")

	assert.Equal(t, "签到结果：签到请求异常\n⚠️ 请检查账号状态或稍后重试", summary)
}

func TestBuildSummaryUnknownRow(t *testing.T) {
	summary := BuildSummary(SignResult{Code: 0, Message: "ok"}, signPageHTML, "stranger")

	assert.NotContains(t, summary, "个人记录")
	assert.Contains(t, summary, "站点统计")
}

func TestLoginFeedbackInvalidField(t *testing.T) {
	html := `<form><input class="is-invalid"><div class="invalid-feedback">
	邮箱不存在
	</div></form>`

	assert.Equal(t, "邮箱不存在", LoginFeedback(html))
}

func TestJSVar(t *testing.T) {
	assert.Equal(t, "已签到", JSVar(signPageHTML, "s1"))
	assert.Equal(t, "", JSVar(signPageHTML, "s2"))
}
