// Package stores provides Redis-backed persistence for transient
// authentication state. It owns keys and TTLs only; token issuance and
// authentication decisions belong to the engine.
package stores
