package flareauth

import (
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// totpManager wraps the time-based one-time-password primitive used by the
// authenticator challenge method. Verification is time-window tolerant: the
// configured skew admits adjacent periods.
type totpManager struct {
	config TOTPConfig
}

func newTOTPManager(cfg TOTPConfig) *totpManager {
	if cfg.Algorithm == "" {
		cfg.Algorithm = "SHA1"
	}
	return &totpManager{config: cfg}
}

// GenerateSecret creates a fresh base32 secret and its otpauth:// URI for
// provisioning an authenticator app.
func (m *totpManager) GenerateSecret(account string) (string, string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.config.Issuer,
		AccountName: account,
		Period:      m.config.Period,
		Digits:      m.digits(),
		Algorithm:   m.algorithm(),
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// VerifyCode checks code against the stored base32 secret at the given time.
func (m *totpManager) VerifyCode(secret, code string, now time.Time) bool {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" || secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(trimmed, secret, now, totp.ValidateOpts{
		Period:    m.config.Period,
		Skew:      m.config.Skew,
		Digits:    m.digits(),
		Algorithm: m.algorithm(),
	})
	return err == nil && ok
}

func (m *totpManager) digits() otp.Digits {
	if m.config.Digits == 8 {
		return otp.DigitsEight
	}
	return otp.DigitsSix
}

func (m *totpManager) algorithm() otp.Algorithm {
	switch strings.ToUpper(m.config.Algorithm) {
	case "SHA256":
		return otp.AlgorithmSHA256
	case "SHA512":
		return otp.AlgorithmSHA512
	default:
		return otp.AlgorithmSHA1
	}
}
