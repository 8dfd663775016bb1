package authcore

import "fmt"

// Guard is an authorization predicate over an authenticated identity.
// Guards run only after authentication succeeds, so a failing guard always
// means forbidden, never unauthorized.
type Guard func(*Identity) error

// RequireRole passes identities holding the exact role.
func RequireRole(role string) Guard {
	return func(id *Identity) error {
		for _, r := range id.Roles {
			if r == role {
				return nil
			}
		}
		return fmt.Errorf("%w: requires role %q", ErrRoleRequired, role)
	}
}

// RequireAnyRole passes identities holding at least one of the roles.
// Matching is set intersection: the order of either list is irrelevant.
func RequireAnyRole(roles ...string) Guard {
	want := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		want[r] = struct{}{}
	}
	return func(id *Identity) error {
		for _, r := range id.Roles {
			if _, ok := want[r]; ok {
				return nil
			}
		}
		return fmt.Errorf("%w: requires one of %v", ErrRoleRequired, roles)
	}
}

// Chain combines guards into one that applies them in order and fails on
// the first error.
func Chain(guards ...Guard) Guard {
	return func(id *Identity) error {
		for _, g := range guards {
			if err := g(id); err != nil {
				return err
			}
		}
		return nil
	}
}
