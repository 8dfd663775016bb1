package pow

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestChallengeHandlerShape(t *testing.T) {
	s := newTestService(t, easyConfig())

	req := httptest.NewRequest(http.MethodPost, "/pow/challenge", nil)
	req.RemoteAddr = "10.0.0.1:55000"
	rec := httptest.NewRecorder()
	s.ChallengeHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp challengeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Challenge.Count != 3 || resp.Challenge.SaltLength != 8 || resp.Challenge.Difficulty != 1 {
		t.Fatalf("unexpected params: %+v", resp.Challenge)
	}
	if resp.Token == "" || resp.Expires == 0 {
		t.Fatalf("missing token or expiry: %+v", resp)
	}
}

func TestChallengeHandlerPerIPLimit(t *testing.T) {
	cfg := easyConfig()
	cfg.MaxPerIP = 1
	s := newTestService(t, cfg)

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/pow/challenge", nil)
		req.RemoteAddr = "10.0.0.1:55000"
		rec := httptest.NewRecorder()
		s.ChallengeHandler().ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("request %d: status %d, want %d", i, rec.Code, want)
		}
	}
}

func TestRedeemHandlerSetsCookie(t *testing.T) {
	s := newTestService(t, easyConfig())

	issued, err := s.Challenge("10.0.0.1")
	if err != nil {
		t.Fatalf("Challenge failed: %v", err)
	}
	solutions := solve(t, issued.Token, issued.Params)

	// Clients send solutions as JSON numbers; the handler must hash the
	// exact wire text.
	payload := map[string]any{"token": issued.Token, "solutions": toNumbers(t, solutions)}
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/pow/redeem", strings.NewReader(string(body)))
	req.RemoteAddr = "10.0.0.1:55000"
	rec := httptest.NewRecorder()
	s.RedeemHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp redeemResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if !resp.Success || resp.Token == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == RedeemCookie {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("redeem cookie not set")
	}
	if cookie.Value != resp.Token {
		t.Fatalf("cookie %q does not match response token %q", cookie.Value, resp.Token)
	}
	if !cookie.HttpOnly || cookie.SameSite != http.SameSiteLaxMode || cookie.Path != "/" {
		t.Fatalf("unexpected cookie attributes: %+v", cookie)
	}
}

func TestRedeemHandlerRejectsBadBody(t *testing.T) {
	s := newTestService(t, easyConfig())

	for _, body := range []string{"", "{", `{"solutions":[1,2,3]}`} {
		req := httptest.NewRequest(http.MethodPost, "/pow/redeem", strings.NewReader(body))
		rec := httptest.NewRecorder()
		s.RedeemHandler().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status %d, want 400", body, rec.Code)
		}
	}
}

func TestRedeemHandlerUnknownToken(t *testing.T) {
	s := newTestService(t, easyConfig())

	body := `{"token":"deadbeef","solutions":[1,2,3]}`
	req := httptest.NewRequest(http.MethodPost, "/pow/redeem", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.RedeemHandler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
}

func TestRequireRedeemTokenGate(t *testing.T) {
	s := newTestService(t, easyConfig())

	issued, _ := s.Challenge("10.0.0.1")
	redeemed, err := s.Redeem(issued.Token, solve(t, issued.Token, issued.Params))
	if err != nil {
		t.Fatalf("Redeem failed: %v", err)
	}

	var hits int
	guarded := s.RequireRedeemToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusNoContent)
	}))

	// No cookie at all.
	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/register", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("missing cookie: status %d, want 403", rec.Code)
	}

	withCookie := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/register", nil)
		req.AddCookie(&http.Cookie{Name: RedeemCookie, Value: redeemed.Token})
		return req
	}

	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, withCookie())
	if rec.Code != http.StatusNoContent || hits != 1 {
		t.Fatalf("valid token: status %d, hits %d", rec.Code, hits)
	}

	// The token was spent by the previous request.
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, withCookie())
	if rec.Code != http.StatusForbidden || hits != 1 {
		t.Fatalf("replayed token: status %d, hits %d", rec.Code, hits)
	}
}

func toNumbers(t *testing.T, solutions []string) []json.Number {
	t.Helper()
	out := make([]json.Number, len(solutions))
	for i, s := range solutions {
		out[i] = json.Number(s)
	}
	return out
}
