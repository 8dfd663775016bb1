// Package authcore is an authentication and anti-automation core: argon2id
// credential hashing, signed access/refresh/partial tokens, TOTP second
// factor with encrypted secrets at rest, single-use recovery codes, role
// guards, and a proof-of-work challenge gate for unauthenticated endpoints.
//
// The package is a library, not a service. Callers plug in their user
// database through [UserProvider] and assemble an [Engine] with [Builder]:
//
//	engine, err := authcore.New().
//		WithMasterSecret(secret).
//		WithUserProvider(db).
//		WithRedis(rdb). // optional: refresh-token revocation
//		Build()
//
// Every secret key in the system (token signing, TOTP secret encryption) is
// derived from the one master secret via the kdf package, so rotating the
// master secret rotates everything.
//
// Engine methods are safe for concurrent use after Build. Errors wrap the
// root taxonomy in errors.go; [StatusCode] maps them to HTTP statuses.
//
// The pow package is independent of the Engine: it gates endpoints like
// registration behind client-side hash puzzles and has its own HTTP
// handlers.
package authcore
