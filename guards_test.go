package authcore

import (
	"errors"
	"net/http"
	"testing"
)

func TestRequireRole(t *testing.T) {
	id := &Identity{UserID: "u1", Roles: []string{"editor", "member"}}

	if err := RequireRole("member")(id); err != nil {
		t.Fatalf("expected pass, got %v", err)
	}
	if err := RequireRole("admin")(id); !errors.Is(err, ErrRoleRequired) {
		t.Fatalf("expected ErrRoleRequired, got %v", err)
	}
}

func TestRequireAnyRoleIsOrderIndependent(t *testing.T) {
	id := &Identity{UserID: "u1", Roles: []string{"b", "c"}}

	for _, roles := range [][]string{{"a", "c"}, {"c", "a"}, {"c"}} {
		if err := RequireAnyRole(roles...)(id); err != nil {
			t.Fatalf("roles %v: expected pass, got %v", roles, err)
		}
	}
	if err := RequireAnyRole("a", "d")(id); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := RequireAnyRole()(id); err == nil {
		t.Fatal("empty requirement must not pass")
	}
}

func TestChainStopsAtFirstFailure(t *testing.T) {
	id := &Identity{UserID: "u1", Roles: []string{"member"}}

	var reached bool
	spy := Guard(func(*Identity) error {
		reached = true
		return nil
	})

	err := Chain(RequireRole("admin"), spy)(id)
	if !errors.Is(err, ErrRoleRequired) {
		t.Fatalf("expected ErrRoleRequired, got %v", err)
	}
	if reached {
		t.Fatal("guards after a failure must not run")
	}

	if err := Chain(RequireRole("member"), spy)(id); err != nil {
		t.Fatalf("expected pass, got %v", err)
	}
	if !reached {
		t.Fatal("passing chain must reach later guards")
	}
}

func TestStatusCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{ErrTokenExpired, http.StatusUnauthorized},
		{Err2FARequired, http.StatusUnauthorized},
		{ErrAccountInactive, http.StatusForbidden},
		{ErrRoleRequired, http.StatusForbidden},
		{ErrRecoveryCodeInvalid, http.StatusBadRequest},
		{ErrIncorrectSecret, http.StatusBadRequest},
		{ErrTOTPAlreadyEnabled, http.StatusConflict},
		{ErrTOTPNotEnabled, http.StatusConflict},
		{ErrRateLimited, http.StatusTooManyRequests},
		{ErrGone, http.StatusGone},
		{ErrServiceUnavailable, http.StatusServiceUnavailable},
		{errors.New("unclassified"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := StatusCode(tc.err); got != tc.want {
			t.Fatalf("StatusCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricTOTPFailure)
	m.Inc(MetricID(9999)) // ignored

	snap := m.Snapshot()
	if snap[MetricLoginSuccess] != 2 {
		t.Fatalf("login success = %d, want 2", snap[MetricLoginSuccess])
	}
	if snap[MetricTOTPFailure] != 1 {
		t.Fatalf("totp failure = %d, want 1", snap[MetricTOTPFailure])
	}
	if len(snap) != int(metricIDCount) {
		t.Fatalf("snapshot has %d entries, want %d", len(snap), metricIDCount)
	}
}
