package captcha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Solver turns a base64 captcha image into text. An empty string means the
// image could not be resolved; it is never an error.
type Solver interface {
	Recognize(ctx context.Context, imageBase64 string) string
}

// OCRClient calls a self-hosted OCR service that accepts {"image": "<b64>"}
// and answers {"result": "<text>"}.
type OCRClient struct {
	endpoint string
	client   *http.Client
	logger   *logrus.Logger
}

type ocrRequest struct {
	Image string `json:"image"`
}

type ocrResponse struct {
	Result string `json:"result"`
}

// NewOCRClient creates a solver for endpoint. An empty endpoint yields a
// client that always answers "".
func NewOCRClient(endpoint string, timeout time.Duration, logger *logrus.Logger) *OCRClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OCRClient{
		endpoint: strings.TrimSpace(endpoint),
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Configured reports whether an OCR endpoint is set
func (c *OCRClient) Configured() bool {
	return c.endpoint != ""
}

// Recognize sends the image to the OCR service
func (c *OCRClient) Recognize(ctx context.Context, imageBase64 string) string {
	imageBase64 = StripDataURI(imageBase64)

	if !c.Configured() {
		c.logger.Warn("OCR service not configured, captcha cannot be recognized")
		return ""
	}

	text, err := c.recognize(ctx, imageBase64)
	if err != nil {
		c.logger.WithError(err).Warn("OCR recognition failed")
		return ""
	}
	return text
}

func (c *OCRClient) recognize(ctx context.Context, imageBase64 string) (string, error) {
	body, err := json.Marshal(ocrRequest{Image: imageBase64})
	if err != nil {
		return "", fmt.Errorf("failed to encode ocr request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr request error: %w", err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read ocr response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("ocr status %s", res.Status)
	}

	var decoded ocrResponse
	if err := json.Unmarshal(resBody, &decoded); err != nil {
		return "", fmt.Errorf("failed to decode ocr response: %w", err)
	}

	return strings.TrimSpace(decoded.Result), nil
}

// StripDataURI drops a "data:image/...;base64," prefix if present
func StripDataURI(imageBase64 string) string {
	if i := strings.Index(imageBase64, ","); i >= 0 {
		return imageBase64[i+1:]
	}
	return imageBase64
}
