package flareauth

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"
	"net/mail"
	"net/url"
	"strings"
	"unicode"
)

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: empty email", ErrValidation)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: malformed email", ErrValidation)
	}
	return nil
}

// validatePassword enforces the strength policy: the configured length floor
// plus at least one uppercase, lowercase, digit and special character.
func validatePassword(password string, minLength int) error {
	if len(password) < minLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minLength)
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit || !hasSpecial {
		return fmt.Errorf("%w: password needs upper, lower, digit and special characters", ErrValidation)
	}
	return nil
}

// generateNumericCode draws a uniform code of the given length from
// crypto/rand. Leading zeros are preserved.
func generateNumericCode(digits int) (string, error) {
	var sb strings.Builder
	sb.Grow(digits)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		sb.WriteByte(byte('0' + n.Int64()))
	}
	return sb.String(), nil
}

func hashChallengeCode(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}

func buildActionURL(base, tok string) string {
	if base == "" {
		return tok
	}
	return base + "?token=" + url.QueryEscape(tok)
}
