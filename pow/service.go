// Package pow repels scripted abuse with hashcash-style proof-of-work
// challenges. The server hands out a challenge token and puzzle parameters;
// the client derives per-puzzle salts and target prefixes from the token
// with a shared deterministic generator and brute-forces each sub-puzzle.
// Verification is O(1) per sub-puzzle. A verified solution is exchanged for
// a short-lived redeem token consumed exactly once by a guarded action.
package pow

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrTooManyChallenges means the issuing IP holds its full quota.
	ErrTooManyChallenges = errors.New("pow: too many challenges for this ip")
	// ErrBusy means the global outstanding-challenge cap is reached.
	ErrBusy = errors.New("pow: challenge capacity reached")
	// ErrUnknownChallenge means the token was never issued, already
	// redeemed, or already swept.
	ErrUnknownChallenge = errors.New("pow: unknown challenge")
	// ErrChallengeExpired means the challenge outlived its TTL. The
	// challenge is gone either way: lookup removes it.
	ErrChallengeExpired = errors.New("pow: challenge expired")
	// ErrInsufficientSolutions means fewer solutions than sub-puzzles.
	ErrInsufficientSolutions = errors.New("pow: not enough solutions")
	// ErrInvalidSolution means at least one sub-puzzle failed verification.
	ErrInvalidSolution = errors.New("pow: invalid solution")
)

const tokenBytes = 25

// Config tunes puzzle difficulty, capacity, and lifetimes.
type Config struct {
	Count         int           // sub-puzzles per challenge
	SaltLength    int           // hex chars of per-puzzle salt
	Difficulty    int           // hex chars of required digest prefix
	ChallengeTTL  time.Duration // solving window
	RedeemTTL     time.Duration // redeem token lifetime
	MaxPerIP      int           // outstanding challenges per IP
	MaxTotal      int           // outstanding challenges globally
	SweepInterval time.Duration // eviction cadence
}

// DefaultConfig returns the production parameter set: 50 sub-puzzles with
// a 4-hex-char target keeps the client busy for a few seconds while server
// verification stays at 50 hashes.
func DefaultConfig() Config {
	return Config{
		Count:         50,
		SaltLength:    32,
		Difficulty:    4,
		ChallengeTTL:  2 * time.Minute,
		RedeemTTL:     3 * time.Minute,
		MaxPerIP:      12,
		MaxTotal:      1000,
		SweepInterval: 10 * time.Second,
	}
}

// Params are the public puzzle parameters returned on issue. Salts and
// targets are not included; the client recomputes them from the token.
type Params struct {
	Count      int `json:"c"`
	SaltLength int `json:"s"`
	Difficulty int `json:"d"`
}

// Issued describes a freshly allocated challenge.
type Issued struct {
	Token     string
	Params    Params
	ExpiresAt time.Time
}

// Redeemed carries the single-use redeem token granted for a solved
// challenge.
type Redeemed struct {
	Token     string
	ExpiresAt time.Time
}

type challenge struct {
	params      Params
	expiresAt   time.Time
	redeemToken string
	ip          string
}

// Service holds the in-process challenge state. All maps share one mutex so
// capacity checks and the mutations that follow them are atomic; nothing
// here performs I/O while holding the lock.
type Service struct {
	config Config
	log    *zap.Logger

	mu         sync.Mutex
	challenges map[string]*challenge
	redeems    map[string]time.Time
	perIP      map[string]int

	stop     chan struct{}
	stopOnce sync.Once
}

// NewService validates cfg, fills zero fields from DefaultConfig, and
// starts the background sweeper. Call Close to stop it.
func NewService(cfg Config, log *zap.Logger) (*Service, error) {
	def := DefaultConfig()
	if cfg.Count == 0 {
		cfg.Count = def.Count
	}
	if cfg.SaltLength == 0 {
		cfg.SaltLength = def.SaltLength
	}
	if cfg.Difficulty == 0 {
		cfg.Difficulty = def.Difficulty
	}
	if cfg.ChallengeTTL == 0 {
		cfg.ChallengeTTL = def.ChallengeTTL
	}
	if cfg.RedeemTTL == 0 {
		cfg.RedeemTTL = def.RedeemTTL
	}
	if cfg.MaxPerIP == 0 {
		cfg.MaxPerIP = def.MaxPerIP
	}
	if cfg.MaxTotal == 0 {
		cfg.MaxTotal = def.MaxTotal
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = def.SweepInterval
	}

	if cfg.Count < 1 || cfg.SaltLength < 1 || cfg.Difficulty < 1 {
		return nil, errors.New("pow: count, salt length, and difficulty must be >= 1")
	}
	if cfg.Difficulty > 64 {
		return nil, errors.New("pow: difficulty exceeds a sha256 hex digest")
	}
	if cfg.MaxPerIP < 1 || cfg.MaxTotal < cfg.MaxPerIP {
		return nil, errors.New("pow: invalid capacity limits")
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &Service{
		config:     cfg,
		log:        log,
		challenges: make(map[string]*challenge),
		redeems:    make(map[string]time.Time),
		perIP:      make(map[string]int),
		stop:       make(chan struct{}),
	}
	go s.sweep()
	return s, nil
}

// Close stops the background sweeper. Idempotent.
func (s *Service) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Challenge allocates a challenge for ip. The per-IP and global capacity
// checks and the insertion happen under one lock so concurrent issuance
// cannot oversell capacity.
func (s *Service) Challenge(ip string) (*Issued, error) {
	token, err := randomHex(tokenBytes)
	if err != nil {
		return nil, err
	}
	redeemToken, err := randomHex(tokenBytes)
	if err != nil {
		return nil, err
	}

	params := Params{Count: s.config.Count, SaltLength: s.config.SaltLength, Difficulty: s.config.Difficulty}
	expiresAt := time.Now().Add(s.config.ChallengeTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.perIP[ip] >= s.config.MaxPerIP {
		return nil, ErrTooManyChallenges
	}
	if len(s.challenges) >= s.config.MaxTotal {
		return nil, ErrBusy
	}

	s.challenges[token] = &challenge{
		params:      params,
		expiresAt:   expiresAt,
		redeemToken: redeemToken,
		ip:          ip,
	}
	s.perIP[ip]++

	return &Issued{Token: token, Params: params, ExpiresAt: expiresAt}, nil
}

// Redeem verifies the submitted solutions. The challenge is one-shot: it
// leaves the active set on lookup, before any outcome is known, so a failed
// redeem cannot be retried. Sub-puzzles are independent and verified
// concurrently. On success the redeem token becomes claimable for the
// redeem TTL.
func (s *Service) Redeem(token string, solutions []string) (*Redeemed, error) {
	s.mu.Lock()
	ch, ok := s.challenges[token]
	if ok {
		delete(s.challenges, token)
		s.releaseIP(ch.ip)
	}
	s.mu.Unlock()

	if !ok {
		return nil, ErrUnknownChallenge
	}
	if time.Now().After(ch.expiresAt) {
		return nil, ErrChallengeExpired
	}
	if len(solutions) < ch.params.Count {
		return nil, ErrInsufficientSolutions
	}

	// All sub-puzzles are checked even after a failure; each is a pure
	// hash comparison with no shared state.
	results := make([]bool, ch.params.Count)
	var wg sync.WaitGroup
	for i := 0; i < ch.params.Count; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = verifySubPuzzle(token, i, solutions[i], ch.params)
		}(i)
	}
	wg.Wait()

	for _, ok := range results {
		if !ok {
			return nil, ErrInvalidSolution
		}
	}

	expiresAt := time.Now().Add(s.config.RedeemTTL)
	s.mu.Lock()
	s.redeems[ch.redeemToken] = expiresAt
	s.mu.Unlock()

	return &Redeemed{Token: ch.redeemToken, ExpiresAt: expiresAt}, nil
}

// verifySubPuzzle accepts solution i iff sha256(salt+solution) starts with
// the target prefix, where salt and target are derived from the token with
// the shared generator. Sub-puzzle indexes are 1-based in the seed.
func verifySubPuzzle(token string, i int, solution string, p Params) bool {
	salt := prng(fmt.Sprintf("%s%d", token, i+1), p.SaltLength)
	target := prng(fmt.Sprintf("%s%dd", token, i+1), p.Difficulty)
	sum := sha256.Sum256([]byte(salt + solution))
	return strings.HasPrefix(hex.EncodeToString(sum[:]), target)
}

// ConsumeRedeemToken deletes the token on first presentation and reports
// whether it was valid and unexpired. The delete happens regardless of
// expiry, so an expired token cannot linger.
func (s *Service) ConsumeRedeemToken(value string) bool {
	if value == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt, ok := s.redeems[value]
	if !ok {
		return false
	}
	delete(s.redeems, value)
	return time.Now().Before(expiresAt)
}

// Outstanding reports the number of active challenges, mainly for tests
// and operational visibility.
func (s *Service) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.challenges)
}

func (s *Service) releaseIP(ip string) {
	if n := s.perIP[ip]; n <= 1 {
		delete(s.perIP, ip)
	} else {
		s.perIP[ip] = n - 1
	}
}

// sweep evicts expired challenges and redeem tokens on a fixed interval.
// It runs independently of request handling and keeps going past any
// single pass; request handlers may mutate the maps between passes.
func (s *Service) sweep() {
	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweepOnce(time.Now())
		}
	}
}

func (s *Service) sweepOnce(now time.Time) {
	s.mu.Lock()
	var evictedChallenges, evictedRedeems int
	for token, ch := range s.challenges {
		if now.After(ch.expiresAt) {
			delete(s.challenges, token)
			s.releaseIP(ch.ip)
			evictedChallenges++
		}
	}
	for token, expiresAt := range s.redeems {
		if now.After(expiresAt) {
			delete(s.redeems, token)
			evictedRedeems++
		}
	}
	s.mu.Unlock()

	if evictedChallenges > 0 || evictedRedeems > 0 {
		s.log.Debug("swept expired pow state",
			zap.Int("challenges", evictedChallenges),
			zap.Int("redeem_tokens", evictedRedeems),
		)
	}
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
