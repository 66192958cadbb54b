package flareauth

import (
	"errors"

	"github.com/flareauth/flareauth/notify"
	"github.com/flareauth/flareauth/password"
	"github.com/flareauth/flareauth/token"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. Configure it during initialization and call
// Build exactly once; a Builder is not safe for concurrent use.
type Builder struct {
	config Config
	redis  *redis.Client

	userStore UserStore
	auditSink AuditSink

	built bool
}

// New returns a Builder preloaded with defaults. The host still has to
// supply a Redis client, a UserStore and signing material.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. Mutating setters applied
// afterwards operate on the replacement.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing challenges, device contexts and
// the notification queue.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithUserStore sets the host-owned user persistence.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.userStore = store
	return b
}

// WithAuditSink sets the destination for audit events. Without one, events
// are discarded.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counter table.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and constructs the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.userStore == nil {
		return nil, errors.New("user store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	engine := &Engine{
		config:    cfg,
		userStore: b.userStore,
	}

	engine.challenges = newChallengeStore(b.redis, cfg.RedisPrefix)
	engine.devices = newDeviceContextStore(b.redis, cfg.RedisPrefix)
	engine.deviceTrust = newDeviceTrustEvaluator(engine.devices)
	engine.totp = newTOTPManager(cfg.TOTP)
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	engine.queue = notify.NewQueue(b.redis, notify.Config{
		KeyPrefix:    cfg.Notify.KeyPrefix,
		DedupWindow:  cfg.Notify.DedupWindow,
		PollInterval: cfg.Notify.PollInterval,
		MaxRetries:   cfg.Notify.MaxRetries,
		RetryBackoff: cfg.Notify.RetryBackoff,
	})

	ph, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	tm, err := token.NewManager(token.Config{
		SigningMethod: token.SigningMethod(cfg.Token.SigningMethod),
		Secret:        cloneBytes(cfg.Token.Secret),
		PrivateKey:    cloneBytes(cfg.Token.PrivateKey),
		PublicKey:     cloneBytes(cfg.Token.PublicKey),
		Issuer:        cfg.Token.Issuer,
		Leeway:        cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}
	engine.tokens = tm

	b.built = true

	return engine, nil
}
