package captcha

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const jpegDataURIPrefix = "data:image/jpeg;base64,"

// EncodeJPEG decodes a captcha image in any registered format and returns it
// re-encoded as a base64 JPEG data URI, the shape the OCR service was
// trained on.
func EncodeJPEG(raw []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to decode captcha image: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return "", fmt.Errorf("failed to encode captcha image: %w", err)
	}

	return jpegDataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
