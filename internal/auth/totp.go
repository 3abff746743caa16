package auth

import (
	"bytes"
	"fmt"
	"image/png"
	"net/url"
	"strconv"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	defaultTOTPIssuer = "FleetGate"

	totpSecretSize = 20
	totpPeriod     = 30

	qrImageSize = 256
)

// Enrollment is the result of provisioning a new TOTP secret. Secret is
// shown to the user exactly once for manual entry; ProvisioningURI feeds
// the QR image. Neither must ever be logged.
type Enrollment struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
}

// TOTPProvisioner generates per-account TOTP secrets.
type TOTPProvisioner struct {
	issuer string
}

// NewTOTPProvisioner creates a provisioner for the given issuer name.
func NewTOTPProvisioner(issuer string) *TOTPProvisioner {
	if issuer == "" {
		issuer = defaultTOTPIssuer
	}
	return &TOTPProvisioner{issuer: issuer}
}

// GenerateSecret produces a fresh base32-encoded secret and the
// otpauth:// provisioning URI for accountLabel. A secure-randomness
// failure propagates so that 2FA enrollment fails closed.
func (p *TOTPProvisioner) GenerateSecret(accountLabel string) (*Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      p.issuer,
		AccountName: accountLabel,
		Period:      totpPeriod,
		SecretSize:  totpSecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	return &Enrollment{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
	}, nil
}

// EnrollmentURI rebuilds the otpauth:// provisioning URI for an already
// stored secret, e.g. to re-render the QR code during enrollment.
func (p *TOTPProvisioner) EnrollmentURI(accountLabel, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("no TOTP secret to provision")
	}

	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", p.issuer)
	v.Set("period", strconv.Itoa(totpPeriod))
	v.Set("digits", "6")
	v.Set("algorithm", "SHA1")

	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + p.issuer + ":" + accountLabel,
		RawQuery: v.Encode(),
	}
	return u.String(), nil
}

// RenderProvisioningImage encodes a provisioning URI as a PNG QR code.
// Presentation only, no security logic.
func RenderProvisioningImage(provisioningURI string) ([]byte, error) {
	code, err := qr.Encode(provisioningURI, qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	code, err = barcode.Scale(code, qrImageSize, qrImageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to scale QR code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return nil, fmt.Errorf("failed to render QR image: %w", err)
	}

	return buf.Bytes(), nil
}

// VerifyCode validates a submitted TOTP code against a secret at the
// given time. Codes from the 30-second step containing at, plus the
// immediately preceding and following steps, are accepted (skew 1 for
// clock drift); anything further is rejected. Pure function of its
// arguments, so tests inject the time directly.
func VerifyCode(code, secret string, at time.Time) bool {
	valid, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false
	}
	return valid
}
