package flareauth

import (
	"errors"
	"time"
)

// ChallengeConfig controls the lifecycle of step-up challenges.
type ChallengeConfig struct {
	// CodeTTL bounds how long a challenge stays verifiable. Fixed at
	// creation; verification after expiry always fails.
	CodeTTL time.Duration
	// MaxAttempts is the total number of verify calls a challenge accepts
	// before it is exhausted.
	MaxAttempts int
	// CodeDigits is the length of generated email/SMS codes.
	CodeDigits int
}

// TokenConfig controls the signed-token surface. Tokens are stateless and
// self-contained; there is no revocation list. Short TTLs are the only
// mitigation, which is a documented limitation of this engine.
type TokenConfig struct {
	SigningMethod string
	// Secret is the HS256 signing key. For ed25519, set PrivateKey/PublicKey
	// instead.
	Secret     []byte
	PrivateKey []byte
	PublicKey  []byte
	Issuer     string
	Leeway     time.Duration

	AccessTTL       time.Duration
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

// PasswordConfig holds argon2id parameters and the strength policy floor.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// MinLength is the password policy floor. Policy additionally requires
	// upper, lower, digit and special characters.
	MinLength int
}

// TOTPConfig controls the authenticator challenge method.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    uint
	Skew      uint
	Algorithm string
}

// NotifyConfig controls the notification queue and its delivery workers.
type NotifyConfig struct {
	// KeyPrefix namespaces all queue keys in Redis.
	KeyPrefix string
	// MaxRetries bounds worker redelivery before a task is dead-lettered.
	MaxRetries int
	// RetryBackoff is the base delay between redeliveries; it grows linearly
	// with the attempt count.
	RetryBackoff time.Duration
	// DedupWindow is how long an idempotency key suppresses duplicates.
	DedupWindow time.Duration
	// PollInterval is the worker's idle poll cadence.
	PollInterval time.Duration
	// VerificationURL is the host page verification tokens are appended to
	// when rendering the email body. When empty the bare token is rendered.
	VerificationURL string
	// ResetURL is the host page reset tokens are appended to.
	ResetURL string
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit non-blocking; dropped events are counted.
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics table.
type MetricsConfig struct {
	Enabled bool
}

// Config is the full engine configuration. Zero values are filled from
// defaultConfig by the Builder; Validate rejects inconsistent combinations.
type Config struct {
	// RedisPrefix namespaces challenge and device-context keys.
	RedisPrefix string

	Challenge ChallengeConfig
	Token     TokenConfig
	Password  PasswordConfig
	TOTP      TOTPConfig
	Notify    NotifyConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

func defaultConfig() Config {
	return Config{
		RedisPrefix: "fa",
		Challenge: ChallengeConfig{
			CodeTTL:     5 * time.Minute,
			MaxAttempts: 3,
			CodeDigits:  6,
		},
		Token: TokenConfig{
			SigningMethod:   "hs256",
			AccessTTL:       time.Hour,
			VerificationTTL: 15 * time.Minute,
			ResetTTL:        30 * time.Minute,
			Issuer:          "flareauth",
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   8,
		},
		TOTP: TOTPConfig{
			Issuer:    "flareauth",
			Digits:    6,
			Period:    30,
			Skew:      1,
			Algorithm: "SHA1",
		},
		Notify: NotifyConfig{
			KeyPrefix:    "fn",
			MaxRetries:   5,
			RetryBackoff: 30 * time.Second,
			DedupWindow:  10 * time.Minute,
			PollInterval: 250 * time.Millisecond,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks the configuration for values the engine cannot operate
// with. It is called by the Builder before construction.
func (c Config) Validate() error {
	if c.Challenge.CodeTTL <= 0 {
		return errors.New("challenge CodeTTL must be positive")
	}
	if c.Challenge.MaxAttempts <= 0 {
		return errors.New("challenge MaxAttempts must be positive")
	}
	if c.Challenge.CodeDigits < 4 || c.Challenge.CodeDigits > 10 {
		return errors.New("challenge CodeDigits must be between 4 and 10")
	}
	if c.Token.AccessTTL <= 0 {
		return errors.New("token AccessTTL must be positive")
	}
	if c.Token.VerificationTTL <= 0 || c.Token.ResetTTL <= 0 {
		return errors.New("verification and reset TTLs must be positive")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("token Leeway out of range")
	}
	switch c.Token.SigningMethod {
	case "hs256":
		if len(c.Token.Secret) < 32 {
			return errors.New("hs256 requires a secret of at least 32 bytes")
		}
	case "ed25519":
		if len(c.Token.PrivateKey) == 0 || len(c.Token.PublicKey) == 0 {
			return errors.New("ed25519 requires a private and public key")
		}
	default:
		return errors.New("unsupported token signing method")
	}
	if c.Password.MinLength < 8 {
		return errors.New("password MinLength must be at least 8")
	}
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return errors.New("totp Digits must be 6 or 8")
	}
	if c.TOTP.Period == 0 {
		return errors.New("totp Period must be positive")
	}
	if c.Notify.MaxRetries < 0 {
		return errors.New("notify MaxRetries must not be negative")
	}
	if c.Notify.DedupWindow <= 0 {
		return errors.New("notify DedupWindow must be positive")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
