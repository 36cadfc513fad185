package qr

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// ViewURL is the relative viewer path encoded into share QR codes. The
// client prepends its own origin.
func ViewURL(token string) string {
	return "/view/" + token
}

// EncodePNG renders the viewer URL for token as a base64 PNG.
func EncodePNG(token string) (string, error) {
	png, err := qrcode.Encode(ViewURL(token), qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("qr: encode: %w", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
