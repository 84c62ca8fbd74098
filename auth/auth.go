package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"checkin-automation/captcha"
	"checkin-automation/logger"
	"checkin-automation/retry"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/114.0 Safari/537.36"
	welcomeMarker    = "欢迎您回来"
	verifiedMarker   = "succeed"
	failurePreview   = 100
)

var (
	ErrNoReferer        = errors.New("referer link not found on space page")
	ErrMissingToken     = errors.New("login form token missing")
	ErrCaptchaExhausted = errors.New("captcha could not be solved and verified")
)

// Credentials identify the account to log in
type Credentials struct {
	Username string
	Password string
}

// Options configures the HTTP side of the session
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Context is the per-run authentication state. The cookie map is only ever
// handed out as a copy.
type Context struct {
	FormHash    string
	SecCodeHash string
	Referer     string
	Cookies     map[string]string
}

// LoginResult represents the result of a login attempt
type LoginResult struct {
	Success      bool
	ErrorMessage string
	// Transient marks a 5xx from the login endpoint
	Transient bool
}

// Session logs into the forum over plain HTTP, borrowing a browser only to
// read the rendered login form.
type Session struct {
	creds   Credentials
	opts    Options
	origin  *url.URL
	client  *http.Client
	fetcher FormFetcher
	solver  captcha.Solver
	policy  *retry.Policy
	logger  *logrus.Logger
	rng     *rand.Rand
	now     func() time.Time

	state Context
}

// NewSession creates a fresh session with an empty cookie jar
func NewSession(creds Credentials, opts Options, fetcher FormFetcher, solver captcha.Solver, policy *retry.Policy, logger *logrus.Logger) (*Session, error) {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	origin, err := url.Parse(opts.BaseURL)
	if err != nil || origin.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", opts.BaseURL)
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if policy == nil {
		policy = retry.DefaultPolicy(logger)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cookie jar: %w", err)
	}

	return &Session{
		creds:   creds,
		opts:    opts,
		origin:  origin,
		client:  &http.Client{Timeout: opts.Timeout, Jar: jar},
		fetcher: fetcher,
		solver:  solver,
		policy:  policy,
		logger:  logger,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
		state: Context{
			Referer: opts.BaseURL,
			Cookies: map[string]string{},
		},
	}, nil
}

// Login runs the whole login flow. Failures are logged and reported through
// the result; nothing is returned as an error.
func (s *Session) Login(ctx context.Context) *LoginResult {
	log := s.logger.WithField("username", logger.MaskUsername(s.creds.Username))
	log.Info("Starting login")

	form, err := s.fetcher.Fetch(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to fetch login parameters")
		return &LoginResult{ErrorMessage: err.Error()}
	}
	if err := s.adoptForm(form); err != nil {
		log.WithError(err).Error("Login form incomplete")
		return &LoginResult{ErrorMessage: err.Error()}
	}

	code, err := s.solveCaptcha(ctx)
	if err != nil {
		log.WithError(err).Error("Captcha step failed")
		return &LoginResult{ErrorMessage: err.Error()}
	}

	result := s.submit(ctx, code)
	if result.Success {
		log.Info("Login successful")
	} else {
		log.WithFields(logrus.Fields{
			"transient": result.Transient,
			"reason":    result.ErrorMessage,
		}).Error("Login failed")
	}
	return result
}

// Cookies returns a copy of the accumulated cookie set
func (s *Session) Cookies() map[string]string {
	return copyCookies(s.state.Cookies)
}

// Context returns a copy of the authentication state
func (s *Session) Context() Context {
	c := s.state
	c.Cookies = copyCookies(s.state.Cookies)
	return c
}

// Origin is the site root the cookies belong to
func (s *Session) Origin() string {
	return s.opts.BaseURL
}

func (s *Session) adoptForm(form *LoginForm) error {
	if form == nil || form.Referer == "" {
		return ErrNoReferer
	}
	if form.FormHash == "" {
		return fmt.Errorf("%w: formhash", ErrMissingToken)
	}
	if form.SecCodeHash == "" {
		return fmt.Errorf("%w: seccodehash", ErrMissingToken)
	}

	s.state.Referer = form.Referer
	s.state.FormHash = form.FormHash
	s.state.SecCodeHash = form.SecCodeHash

	jarCookies := make([]*http.Cookie, 0, len(form.Cookies))
	for name, value := range form.Cookies {
		s.state.Cookies[name] = value
		jarCookies = append(jarCookies, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	s.client.Jar.SetCookies(s.origin, jarCookies)

	return nil
}

func (s *Session) submit(ctx context.Context, code string) *LoginResult {
	q, err := encode(loginQuery{
		Mod:         "logging",
		Action:      "login",
		LoginSubmit: "yes",
		HandleKey:   "login",
		LoginHash:   randomLoginHash(s.rng),
		InAjax:      1,
	})
	if err != nil {
		return &LoginResult{ErrorMessage: fmt.Sprintf("failed to encode login query: %v", err)}
	}
	body, err := encode(loginForm{
		FormHash:      s.state.FormHash,
		Referer:       s.state.Referer,
		Username:      s.creds.Username,
		Password:      s.creds.Password,
		QuestionID:    0,
		SecCodeHash:   s.state.SecCodeHash,
		SecCodeModID:  secCodeModID,
		SecCodeVerify: code,
	})
	if err != nil {
		return &LoginResult{ErrorMessage: fmt.Sprintf("failed to encode login form: %v", err)}
	}

	req, err := s.newRequest(ctx, http.MethodPost, s.opts.BaseURL+"/member.php?"+q, strings.NewReader(body))
	if err != nil {
		return &LoginResult{ErrorMessage: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return &LoginResult{ErrorMessage: fmt.Sprintf("failed to submit login: %v", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &LoginResult{ErrorMessage: fmt.Sprintf("failed to read login response: %v", err)}
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return &LoginResult{
			ErrorMessage: fmt.Sprintf("login endpoint returned %s", resp.Status),
			Transient:    true,
		}
	}

	text := string(raw)
	if !strings.Contains(text, welcomeMarker) {
		return &LoginResult{ErrorMessage: preview(text, failurePreview)}
	}

	for _, c := range s.client.Jar.Cookies(s.origin) {
		s.state.Cookies[c.Name] = c.Value
	}
	return &LoginResult{Success: true}
}

func (s *Session) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)
	req.Header.Set("Referer", s.state.Referer)
	return req, nil
}

func copyCookies(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
