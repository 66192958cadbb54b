package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Purpose binds a token to the single operation allowed to consume it. A
// token presented to an operation expecting a different purpose is rejected
// outright, not treated as merely out of context.
type Purpose string

const (
	// PurposeAccess marks session access tokens.
	PurposeAccess Purpose = "access"
	// PurposeEmailVerify marks email-verification tokens.
	PurposeEmailVerify Purpose = "email-verify"
	// PurposePasswordReset marks password-reset tokens.
	PurposePasswordReset Purpose = "password-reset"
)

// SigningMethod selects the signature algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with a shared symmetric secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
)

var (
	// ErrInvalid is returned for tokens with a bad signature, shape, or
	// unexpected algorithm.
	ErrInvalid = errors.New("token invalid")
	// ErrExpired is returned for tokens past their exp claim.
	ErrExpired = errors.New("token expired")
	// ErrWrongPurpose is returned when the purpose claim does not match the
	// consuming operation.
	ErrWrongPurpose = errors.New("token purpose mismatch")
)

// Config holds the signing material. Key rotation is out of scope: one
// signing key, supplied by the host.
type Config struct {
	SigningMethod SigningMethod
	// Secret is the HS256 key. Ignored for ed25519.
	Secret     []byte
	PrivateKey []byte
	PublicKey  []byte
	Issuer     string
	Leeway     time.Duration
}

// Claims is the payload carried by every token this engine mints.
type Claims struct {
	UserID  string  `json:"uid"`
	Email   string  `json:"eml,omitempty"`
	Purpose Purpose `json:"pur"`
	jwt.RegisteredClaims
}

// Manager issues and validates purpose-bound signed tokens. Tokens are
// stateless and self-contained; validation needs no backend call.
type Manager struct {
	config Config
}

// NewManager validates the signing configuration up front so a misconfigured
// key surfaces at construction, not at the first issue call.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.Secret) == 0 {
			return nil, errors.New("hs256 requires a secret")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires a public key")
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	return &Manager{config: cfg}, nil
}

// Issue mints a token of the given purpose. ttl may be zero or negative,
// producing a token that is already expired; Validate will reject it with
// ErrExpired.
func (m *Manager) Issue(purpose Purpose, userID, email string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("empty user id")
	}
	now := time.Now()
	claims := Claims{
		UserID:  userID,
		Email:   email,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    m.config.Issuer,
		},
	}

	tok := jwt.NewWithClaims(m.method(), claims)
	key, err := m.signKey()
	if err != nil {
		return "", err
	}
	return tok.SignedString(key)
}

// Validate parses and verifies the token and checks its purpose claim
// against expected. Purpose is checked only after the signature and expiry,
// so a forged token never learns which purposes exist.
func (m *Manager) Validate(tokenStr string, expected Purpose) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.method().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.verifyKey()
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrInvalid
	}
	if claims.UserID == "" {
		return nil, ErrInvalid
	}
	if claims.Purpose != expected {
		return nil, ErrWrongPurpose
	}
	return claims, nil
}

func (m *Manager) method() jwt.SigningMethod {
	switch m.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (m *Manager) signKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.Secret, nil
	default:
		return parseEdPrivateKey(m.config.PrivateKey)
	}
}

func (m *Manager) verifyKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.Secret, nil
	default:
		return parseEdPublicKey(m.config.PublicKey)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	if strings.Contains(string(key), "PRIVATE KEY") {
		parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
		if err != nil {
			return nil, errors.New("invalid ed25519 private key")
		}
		edKey, ok := parsed.(ed25519.PrivateKey)
		if !ok {
			return nil, errors.New("invalid ed25519 private key type")
		}
		return edKey, nil
	}
	return nil, errors.New("invalid ed25519 private key")
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	if strings.Contains(string(key), "PUBLIC KEY") {
		parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
		if err != nil {
			return nil, errors.New("invalid ed25519 public key")
		}
		edKey, ok := parsed.(ed25519.PublicKey)
		if !ok {
			return nil, errors.New("invalid ed25519 public key type")
		}
		return edKey, nil
	}
	return nil, errors.New("invalid ed25519 public key")
}
