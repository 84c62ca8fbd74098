package hifiti

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/sirupsen/logrus"

	"checkin-automation/auth"
	"checkin-automation/logger"
	"checkin-automation/notify"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

	LineLoginFailed = "❌ 登录失败，签到流程未开始"
)

// Options configures the client
type Options struct {
	BaseURL     string
	Username    string
	Password    string
	DisplayName string
	UserAgent   string
	Timeout     time.Duration
}

// SignResult is the sign endpoint's answer. Code is -1 when the answer could
// not be read.
type SignResult struct {
	Code    int
	Message string
}

// Client talks to the forum over plain HTTP
type Client struct {
	opts   Options
	origin *url.URL
	client *http.Client
	logger *logrus.Logger
	now    func() time.Time
}

type loginForm struct {
	Email    string `url:"email"`
	Password string `url:"password"`
}

// signCode accepts both "0" and 0
type signCode int

func (c *signCode) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		*c = -1
		return nil
	}
	*c = signCode(n)
	return nil
}

type signResponse struct {
	Code    *signCode `json:"code"`
	Message string    `json:"message"`
}

// NewClient creates a client with a fresh cookie jar
func NewClient(opts Options, logger *logrus.Logger) (*Client, error) {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	origin, err := url.Parse(opts.BaseURL)
	if err != nil || origin.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", opts.BaseURL)
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cookie jar: %w", err)
	}

	return &Client{
		opts:   opts,
		origin: origin,
		client: &http.Client{Timeout: opts.Timeout, Jar: jar},
		logger: logger,
		now:    time.Now,
	}, nil
}

func (c *Client) url(path string) string {
	return c.opts.BaseURL + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Referer", c.opts.BaseURL+"/")
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, string, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, "", fmt.Errorf("failed to read response: %w", err)
	}
	return resp, string(raw), nil
}

// bootstrap visits the login page so the site hands out its cookies
func (c *Client) bootstrap(ctx context.Context) {
	req, err := c.newRequest(ctx, http.MethodGet, c.url("user-login.htm"), nil)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to prepare login page request")
		return
	}
	resp, _, err := c.do(req)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to open login page")
		return
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.WithField("status", resp.StatusCode).Warn("Login page returned unexpected status")
		return
	}
	c.logger.Debug("Login page visited, cookies initialized")
}

// Login posts the credentials. A non-zero bbs_uid cookie means success.
func (c *Client) Login(ctx context.Context) *auth.LoginResult {
	log := c.logger.WithField("username", logger.MaskUsername(c.opts.Username))
	c.bootstrap(ctx)

	form, err := query.Values(loginForm{Email: c.opts.Username, Password: c.opts.Password})
	if err != nil {
		return &auth.LoginResult{ErrorMessage: err.Error()}
	}

	loginURL := c.url("user-login.htm")
	req, err := c.newRequest(ctx, http.MethodPost, loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return &auth.LoginResult{ErrorMessage: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", c.opts.BaseURL)
	req.Header.Set("Referer", loginURL)

	resp, body, err := c.do(req)
	if err != nil {
		log.WithError(err).Error("Login request failed")
		return &auth.LoginResult{ErrorMessage: fmt.Sprintf("login request failed: %v", err)}
	}
	if resp.StatusCode != http.StatusOK {
		log.WithField("status", resp.StatusCode).Error("Login failed")
		return &auth.LoginResult{
			ErrorMessage: fmt.Sprintf("login returned HTTP %d", resp.StatusCode),
			Transient:    resp.StatusCode >= http.StatusInternalServerError,
		}
	}

	if uid := c.cookie("bbs_uid"); uid != "" && uid != "0" {
		log.WithField("uid", uid).Info("Login successful")
		return &auth.LoginResult{Success: true}
	}

	message := LoginFeedback(body)
	log.WithField("reason", message).Error("Login failed")
	return &auth.LoginResult{ErrorMessage: message}
}

func (c *Client) cookie(name string) string {
	for _, ck := range c.client.Jar.Cookies(c.origin) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

// Sign calls the sign endpoint
func (c *Client) Sign(ctx context.Context) SignResult {
	signURL := c.url("sg_sign.htm")
	req, err := c.newRequest(ctx, http.MethodPost, signURL, nil)
	if err != nil {
		return SignResult{Code: -1, Message: err.Error()}
	}
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Referer", signURL)

	_, body, err := c.do(req)
	if err != nil {
		c.logger.WithError(err).Error("Sign request failed")
		return SignResult{Code: -1, Message: fmt.Sprintf("签到请求异常：%v", err)}
	}

	var data signResponse
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		preview := strings.TrimSpace(truncate(body, 200))
		c.logger.WithField("body", preview).Error("Sign endpoint returned non-JSON")
		return SignResult{Code: -1, Message: "签到接口返回异常：" + preview}
	}

	result := SignResult{Code: -1, Message: strings.TrimSpace(data.Message)}
	if data.Code != nil {
		result.Code = int(*data.Code)
	}
	if result.Message == "" {
		result.Message = "站点未返回消息"
	}

	c.logger.WithFields(logrus.Fields{
		"code":    result.Code,
		"message": result.Message,
	}).Info("Sign endpoint answered")
	return result
}

// FetchSignPage returns the sign page source
func (c *Client) FetchSignPage(ctx context.Context) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.url("sg_sign.htm"), nil)
	if err != nil {
		return "", err
	}
	resp, body, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch sign page: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch sign page: HTTP %d", resp.StatusCode)
	}
	return body, nil
}

// Run logs in, signs, summarizes and sends exactly one notification
func (c *Client) Run(ctx context.Context, n notify.Notifier) string {
	title := "HiFiTi 签到 - " + c.now().Format("2006-01-02")
	send := func(body string) string {
		n.Send(context.WithoutCancel(ctx), title, body)
		return body
	}

	if result := c.Login(ctx); !result.Success {
		return send(LineLoginFailed)
	}

	sign := c.Sign(ctx)
	html, err := c.FetchSignPage(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("Sign page unavailable, summary will be partial")
	}

	displayName := c.opts.DisplayName
	if displayName == "" {
		displayName = c.opts.Username
	}
	return send(BuildSummary(sign, html, displayName))
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
