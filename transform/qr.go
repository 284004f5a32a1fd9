package transform

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// QRSize is the side length in pixels of generated QR codes.
const QRSize = 256

// QRCode renders content as a PNG QR code.
func QRCode(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: empty QR content", ErrInvalidParams)
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}
	return png, nil
}
