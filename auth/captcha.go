package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"checkin-automation/captcha"
	"checkin-automation/retry"
)

const captchaLength = 4

// captchaAttempt is the state of one fetch/solve/verify round
type captchaAttempt struct {
	image    []byte
	text     string
	verified bool
}

func (s *Session) solveCaptcha(ctx context.Context) (string, error) {
	imageURL, err := s.captchaImageURL()
	if err != nil {
		return "", err
	}

	var solved string
	attempts, ok := s.policy.Run(ctx, func(n int) retry.Attempt {
		attempt, reason := s.captchaRound(ctx, imageURL)
		log := s.logger.WithFields(logrus.Fields{
			"attempt": n,
			"text":    attempt.text,
		})
		if !attempt.verified {
			log.WithField("reason", reason).Info("Captcha rejected")
			return retry.Attempt{Reason: reason}
		}
		log.Info("Captcha verified")
		solved = attempt.text
		return retry.Attempt{Accepted: true}
	})
	if !ok {
		return "", fmt.Errorf("%w after %d attempts", ErrCaptchaExhausted, attempts)
	}
	return solved, nil
}

func (s *Session) captchaImageURL() (string, error) {
	q, err := encode(captchaImageQuery{
		Mod:    "seccode",
		Update: s.now().Unix(),
		IDHash: s.state.SecCodeHash,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode captcha query: %w", err)
	}
	return s.opts.BaseURL + "/misc.php?" + q, nil
}

// captchaRound fetches one image, asks the solver and verifies the answer.
// The returned reason explains a rejection.
func (s *Session) captchaRound(ctx context.Context, imageURL string) (captchaAttempt, string) {
	var attempt captchaAttempt

	req, err := s.newRequest(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return attempt, err.Error()
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return attempt, fmt.Sprintf("captcha fetch failed: %v", err)
	}
	defer resp.Body.Close()

	if !strings.Contains(resp.Header.Get("Content-Type"), "image") {
		return attempt, "captcha response is not an image"
	}
	attempt.image, err = io.ReadAll(resp.Body)
	if err != nil {
		return attempt, fmt.Sprintf("captcha read failed: %v", err)
	}

	encoded, err := captcha.EncodeJPEG(attempt.image)
	if err != nil {
		return attempt, err.Error()
	}

	attempt.text = s.solver.Recognize(ctx, encoded)
	if len([]rune(attempt.text)) != captchaLength {
		return attempt, fmt.Sprintf("recognized text has length %d", len([]rune(attempt.text)))
	}

	attempt.verified = s.verifyCaptcha(ctx, attempt.text)
	if !attempt.verified {
		return attempt, "verification refused"
	}
	return attempt, ""
}

func (s *Session) verifyCaptcha(ctx context.Context, text string) bool {
	q, err := encode(captchaVerifyQuery{
		Mod:       "seccode",
		Action:    "check",
		InAjax:    1,
		ModID:     secCodeModID,
		IDHash:    s.state.SecCodeHash,
		SecVerify: text,
	})
	if err != nil {
		return false
	}

	req, err := s.newRequest(ctx, http.MethodGet, s.opts.BaseURL+"/misc.php?"+q, nil)
	if err != nil {
		return false
	}
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.WithError(err).Warn("Captcha verification request failed")
		return false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false
	}
	return resp.StatusCode >= 200 && resp.StatusCode < 300 && strings.Contains(string(body), verifiedMarker)
}
