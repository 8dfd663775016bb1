package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"authcore"
	"authcore/kdf"
	"authcore/password"
	"authcore/recovery"
)

// staticProvider serves a fixed set of users; writes are not supported.
type staticProvider struct {
	users map[string]authcore.UserRecord
}

func (p *staticProvider) GetUserByID(_ context.Context, userID string) (authcore.UserRecord, error) {
	u, ok := p.users[userID]
	if !ok {
		return authcore.UserRecord{}, errors.New("user not found")
	}
	return u, nil
}

func (p *staticProvider) GetUserByIdentifier(ctx context.Context, identifier string) (authcore.UserRecord, error) {
	for _, u := range p.users {
		if u.Identifier == identifier {
			return u, nil
		}
	}
	return authcore.UserRecord{}, errors.New("user not found")
}

func (p *staticProvider) UpdatePasswordHash(context.Context, string, string) error { return nil }
func (p *staticProvider) GetTOTPRecord(context.Context, string) (*authcore.TOTPRecord, error) {
	return nil, nil
}
func (p *staticProvider) SetTOTPCandidate(context.Context, string, []byte) error     { return nil }
func (p *staticProvider) MarkTOTPEnabled(context.Context, string) error              { return nil }
func (p *staticProvider) UpdateTOTPLastUsedCounter(context.Context, string, int64) error {
	return nil
}
func (p *staticProvider) ClearTOTP(context.Context, string) error { return nil }
func (p *staticProvider) GetRecoveryCodes(context.Context, string) (*recovery.Set, error) {
	return nil, nil
}
func (p *staticProvider) ReplaceRecoveryCodes(context.Context, string, *recovery.Set) error {
	return nil
}

// newTestEngine builds an engine with two seeded users: "alice" (member,
// single factor) and "bob" (TOTP enabled, logins stop at a partial token).
func newTestEngine(t *testing.T) *authcore.Engine {
	t.Helper()

	cfg := authcore.DefaultConfig()
	cfg.MasterSecret = []byte("0123456789abcdef0123456789abcdef")
	cfg.KDF = kdf.Config{Time: 1, MemoryKB: 8192, Parallelism: 1}
	cfg.Password = password.Config{MemoryKB: 8192, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

	hasher, err := password.NewArgon2(cfg.Password)
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	hash, err := hasher.Hash("Sup3rSecret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	provider := &staticProvider{users: map[string]authcore.UserRecord{
		"uid-alice": {
			UserID:       "uid-alice",
			Identifier:   "alice",
			PasswordHash: hash,
			Roles:        []string{"member"},
			Active:       true,
		},
		"uid-bob": {
			UserID:       "uid-bob",
			Identifier:   "bob",
			PasswordHash: hash,
			Active:       true,
			TOTPEnabled:  true,
		},
	}}

	engine, err := authcore.New().WithConfig(cfg).WithUserProvider(provider).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return engine
}

func login(t *testing.T, engine *authcore.Engine, identifier string) *authcore.LoginResult {
	t.Helper()
	result, err := engine.Login(context.Background(), identifier, "Sup3rSecret")
	if err != nil {
		t.Fatalf("login %q: %v", identifier, err)
	}
	return result
}

func get(handler http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticateMiddleware(t *testing.T) {
	engine := newTestEngine(t)
	result := login(t, engine, "alice")

	var identity *authcore.Identity
	handler := Authenticate(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	if rec := get(handler, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: expected 401, got %d", rec.Code)
	}
	if rec := get(handler, "garbage"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: expected 401, got %d", rec.Code)
	}

	rec := get(handler, result.AccessToken)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("valid token: expected 204, got %d", rec.Code)
	}
	if identity == nil || identity.UserID != "uid-alice" || identity.Partial {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestAuthenticateMiddlewareAppliesGuards(t *testing.T) {
	engine := newTestEngine(t)
	result := login(t, engine, "alice")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	if rec := get(Authenticate(engine, authcore.RequireRole("member"))(next), result.AccessToken); rec.Code != http.StatusNoContent {
		t.Fatalf("member guard: expected 204, got %d", rec.Code)
	}
	if rec := get(Authenticate(engine, authcore.RequireRole("admin"))(next), result.AccessToken); rec.Code != http.StatusForbidden {
		t.Fatalf("admin guard: expected 403, got %d", rec.Code)
	}
}

func TestAuthenticatePartialMiddleware(t *testing.T) {
	engine := newTestEngine(t)
	partial := login(t, engine, "bob")
	if !partial.TwoFactorRequired || partial.PartialToken == "" {
		t.Fatalf("expected partial grant, got %+v", partial)
	}
	full := login(t, engine, "alice")

	var identity *authcore.Identity
	handler := AuthenticatePartial(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := get(handler, partial.PartialToken)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("partial token: expected 204, got %d", rec.Code)
	}
	if identity == nil || !identity.Partial || identity.UserID != "uid-bob" {
		t.Fatalf("unexpected identity: %+v", identity)
	}

	// Full tokens never pass the partial gate.
	if rec := get(handler, full.AccessToken); rec.Code != http.StatusBadRequest {
		t.Fatalf("full token: expected 400, got %d", rec.Code)
	}
	if rec := get(handler, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: expected 401, got %d", rec.Code)
	}
}
