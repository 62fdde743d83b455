package identity

import (
	"context"
	"errors"
)

var (
	ErrUserNotFound = errors.New("user not found")
)

// Identity describes who is asking: a resolved user session, an anonymous
// token holder, or nobody at all.
type Identity struct {
	UserID        string `json:"user_id"`
	DisplayName   string `json:"display_name"`
	EmailAddress  string `json:"email_address,omitempty"`
	IsAdmin       bool   `json:"is_admin"`
	Authenticated bool   `json:"authenticated"`
	ShareToken    string `json:"share_token,omitempty"`
}

// Anonymous returns an identity carrying only a share token.
func Anonymous(token string) Identity {
	return Identity{ShareToken: token}
}

// Resolver supplies identities to the poll core. Implementations live at the
// service boundary (session middleware, directory backend).
type Resolver interface {
	// CurrentIdentity resolves the calling identity. Returns ErrUserNotFound
	// when no session can be established; callers treat that as anonymous
	// unless the route requires authentication.
	CurrentIdentity(ctx context.Context) (Identity, error)

	// Resolve looks up a user by id, for transfer and takeover targets.
	Resolve(ctx context.Context, userID string) (Identity, error)
}

// StaticResolver resolves from a fixed user table. Used in tests and
// single-tenant deployments.
type StaticResolver struct {
	Current Identity
	Users   map[string]Identity
}

var _ Resolver = (*StaticResolver)(nil)

func (r *StaticResolver) CurrentIdentity(ctx context.Context) (Identity, error) {
	if r.Current.UserID == "" && r.Current.ShareToken == "" {
		return Identity{}, ErrUserNotFound
	}
	return r.Current, nil
}

func (r *StaticResolver) Resolve(ctx context.Context, userID string) (Identity, error) {
	if user, ok := r.Users[userID]; ok {
		return user, nil
	}
	return Identity{}, ErrUserNotFound
}
