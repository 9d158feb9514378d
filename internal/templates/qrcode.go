package templates

import (
	"errors"
	"fmt"

	"github.com/skip2/go-qrcode"
)

// RFC 8628 section 3.3.1 suggests a QR code of verification_uri_complete for
// users who continue on a phone.
const qrSize = 256

// qrLevel is the error correction level of the generated code, qrcode.Medium (15% recovery)
const qrLevel = qrcode.Medium

// GenerateQRCode encodes the verification URI as a PNG image
func (t *Templates) GenerateQRCode(verificationURI string) ([]byte, error) {
	if verificationURI == "" {
		return nil, errors.New("empty verification URI")
	}

	png, err := qrcode.Encode(verificationURI, qrLevel, qrSize)
	if err != nil {
		return nil, fmt.Errorf("encoding QR code: %w", err)
	}
	return png, nil
}
