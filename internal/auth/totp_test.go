package auth

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateCodeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()

	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

func TestGenerateSecret(t *testing.T) {
	t.Parallel()

	p := NewTOTPProvisioner("Fleetadmin")

	enrollment, err := p.GenerateSecret("olga.dimitrova")
	require.NoError(t, err)

	assert.NotEmpty(t, enrollment.Secret)
	assert.True(t, strings.HasPrefix(enrollment.ProvisioningURI, "otpauth://totp/"))
	assert.Contains(t, enrollment.ProvisioningURI, "issuer=Fleetadmin")
	assert.Contains(t, enrollment.ProvisioningURI, "olga.dimitrova")
	assert.Contains(t, enrollment.ProvisioningURI, enrollment.Secret)

	// Fresh randomness per enrollment.
	second, err := p.GenerateSecret("olga.dimitrova")
	require.NoError(t, err)
	assert.NotEqual(t, enrollment.Secret, second.Secret)
}

func TestEnrollmentURI(t *testing.T) {
	t.Parallel()

	p := NewTOTPProvisioner("Fleetadmin")

	uri, err := p.EnrollmentURI("driver1", "JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "otpauth://totp/"))
	assert.Contains(t, uri, "secret=JBSWY3DPEHPK3PXP")
	assert.Contains(t, uri, "issuer=Fleetadmin")

	_, err = p.EnrollmentURI("driver1", "")
	require.Error(t, err)
}

func TestVerifyCode_Window(t *testing.T) {
	t.Parallel()

	p := NewTOTPProvisioner("")
	enrollment, err := p.GenerateSecret("window-test")
	require.NoError(t, err)
	secret := enrollment.Secret

	// Pin the reference time to the start of a step so the offsets
	// below land in predictable steps.
	base := time.Unix(1700000000-(1700000000%30), 0)
	code := generateCodeAt(t, secret, base)

	// Valid for the step containing base and through the end of it.
	assert.True(t, VerifyCode(code, secret, base))
	assert.True(t, VerifyCode(code, secret, base.Add(29*time.Second)))

	// Adjacent steps tolerated for clock drift.
	assert.True(t, VerifyCode(code, secret, base.Add(35*time.Second)))
	assert.True(t, VerifyCode(code, secret, base.Add(-5*time.Second)))

	// Two steps away is outside the tolerance window.
	assert.False(t, VerifyCode(code, secret, base.Add(90*time.Second)))
	assert.False(t, VerifyCode(code, secret, base.Add(-90*time.Second)))
}

func TestVerifyCode_Invalid(t *testing.T) {
	t.Parallel()

	p := NewTOTPProvisioner("")
	enrollment, err := p.GenerateSecret("invalid-test")
	require.NoError(t, err)

	now := time.Now()
	assert.False(t, VerifyCode("000000", enrollment.Secret, now))
	assert.False(t, VerifyCode("", enrollment.Secret, now))
	assert.False(t, VerifyCode("abcdef", enrollment.Secret, now))
}

func TestRenderProvisioningImage(t *testing.T) {
	t.Parallel()

	p := NewTOTPProvisioner("Fleetadmin")
	enrollment, err := p.GenerateSecret("qr-test")
	require.NoError(t, err)

	image, err := RenderProvisioningImage(enrollment.ProvisioningURI)
	require.NoError(t, err)

	pngMagic := []byte{0x89, 'P', 'N', 'G'}
	assert.True(t, bytes.HasPrefix(image, pngMagic), "expected PNG output")
}
