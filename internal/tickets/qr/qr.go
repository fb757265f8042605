package qr

import (
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
)

const DefaultSize = 256

// SessionURL is what a ticket stub QR code points at.
func SessionURL(publicURL, token string) string {
	return fmt.Sprintf("%s/session/%s", strings.TrimRight(publicURL, "/"), token)
}

// EncodeSession renders the session lookup URL as a PNG QR code.
func EncodeSession(publicURL, token string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qrcode.Encode(SessionURL(publicURL, token), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
