package authcore

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"authcore/aead"
	"authcore/internal/stores"
	"authcore/kdf"
	"authcore/password"
	"authcore/recovery"
	"authcore/token"
	"authcore/totp"
)

// Builder assembles an [Engine]. Configure it once, call Build once, and
// treat the resulting engine as immutable.
type Builder struct {
	config       Config
	userProvider UserProvider
	redis        redis.UniversalClient
	log          *zap.Logger

	built bool
}

// New returns a Builder preloaded with [DefaultConfig]. The master secret
// and user provider must still be supplied.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithMasterSecret sets the secret all keys are derived from.
func (b *Builder) WithMasterSecret(secret []byte) *Builder {
	b.config.MasterSecret = secret
	return b
}

// WithUserProvider sets the caller's user database adapter.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithRedis enables refresh-token revocation. Without a client, Refresh
// still rotates tokens but consumed tokens stay valid until expiry and
// Logout is a no-op.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	b.log = log
	return b
}

// Build derives the signing and encryption keys, constructs every
// component, and returns the ready engine. Key derivation runs the full
// argon2id cost once per context, so Build is deliberately slow.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	log := b.log
	if log == nil {
		log = zap.NewNop()
	}

	deriver, err := kdf.New(b.config.MasterSecret, b.config.KDF)
	if err != nil {
		return nil, err
	}
	signingKey, err := deriver.Derive("jwt", 32)
	if err != nil {
		return nil, err
	}
	totpKey, err := deriver.Derive("totp", 32)
	if err != nil {
		return nil, err
	}

	cipher, err := aead.New(totpKey)
	if err != nil {
		return nil, err
	}

	tokens, err := token.NewManager(token.Config{
		SigningKey: signingKey,
		AccessTTL:  b.config.Token.AccessTTL,
		RefreshTTL: b.config.Token.RefreshTTL,
		PartialTTL: b.config.Token.PartialTTL,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewArgon2(b.config.Password)
	if err != nil {
		return nil, err
	}

	totpManager, err := totp.NewManager(totp.Config{
		Issuer:    b.config.TOTP.Issuer,
		Digits:    b.config.TOTP.Digits,
		Period:    b.config.TOTP.Period,
		Skew:      b.config.TOTP.Skew,
		Algorithm: b.config.TOTP.Algorithm,
	})
	if err != nil {
		return nil, err
	}

	recoveryStore, err := recovery.NewStore(b.config.Recovery, hasher, log)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:   b.config,
		log:      log,
		metrics:  NewMetrics(),
		users:    b.userProvider,
		hasher:   hasher,
		cipher:   cipher,
		tokens:   tokens,
		totp:     totpManager,
		recovery: recoveryStore,
	}
	if b.redis != nil {
		engine.revocation = stores.NewRevocationStore(b.redis, "")
	}

	b.built = true
	return engine, nil
}
