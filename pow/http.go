package pow

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RedeemCookie is the cookie carrying the redeem token between the redeem
// response and the guarded request that spends it.
const RedeemCookie = "pow_redeem"

type challengeResponse struct {
	Challenge Params `json:"challenge"`
	Token     string `json:"token"`
	Expires   int64  `json:"expires"` // unix milliseconds
}

type redeemRequest struct {
	Token     string        `json:"token"`
	Solutions []json.Number `json:"solutions"`
}

type redeemResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	Expires int64  `json:"expires"` // unix milliseconds
}

// ChallengeHandler issues a challenge for the caller's IP and responds
// with {challenge:{c,s,d}, token, expires}.
func (s *Service) ChallengeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		issued, err := s.Challenge(clientIP(r))
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, challengeResponse{
			Challenge: issued.Params,
			Token:     issued.Token,
			Expires:   issued.ExpiresAt.UnixMilli(),
		})
	}
}

// RedeemHandler verifies submitted solutions and, on success, responds
// with the redeem token and sets it as a same-site, http-only cookie.
// Numeric solutions keep their exact wire text when hashed.
func (s *Service) RedeemHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		var req redeemRequest
		if err := dec.Decode(&req); err != nil || req.Token == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request"})
			return
		}

		solutions := make([]string, len(req.Solutions))
		for i, n := range req.Solutions {
			solutions[i] = n.String()
		}

		redeemed, err := s.Redeem(req.Token, solutions)
		if err != nil {
			s.writeError(w, err)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     RedeemCookie,
			Value:    redeemed.Token,
			MaxAge:   int(s.config.RedeemTTL / time.Second),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Path:     "/",
		})
		writeJSON(w, http.StatusOK, redeemResponse{
			Success: true,
			Token:   redeemed.Token,
			Expires: redeemed.ExpiresAt.UnixMilli(),
		})
	}
}

// RequireRedeemToken gates next behind a one-time redeem token presented in
// the redeem cookie. The token is deleted on the first guarded request,
// whatever the outcome of next.
func (s *Service) RequireRedeemToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(RedeemCookie)
		if err != nil || !s.ConsumeRedeemToken(cookie.Value) {
			s.log.Debug("request rejected by pow gate", zap.String("path", r.URL.Path))
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "challenge_required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Service) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrTooManyChallenges):
		status = http.StatusTooManyRequests
	case errors.Is(err, ErrBusy):
		status = http.StatusServiceUnavailable
	case errors.Is(err, ErrUnknownChallenge):
		status = http.StatusNotFound
	case errors.Is(err, ErrChallengeExpired):
		status = http.StatusGone
	case errors.Is(err, ErrInsufficientSolutions), errors.Is(err, ErrInvalidSolution):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.log.Error("pow handler failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
