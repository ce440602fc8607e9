package ports

import "context"

// Account is the signed-in principal as reported by the identity provider.
type Account struct {
	ID   string
	Name string
}

// Identity is the enterprise sign-in capability: a stable account, silently
// when possible, and resource-scoped access tokens on demand.
type Identity interface {
	// EnsureSignedIn returns the active account, running an interactive flow
	// if no cached sign-in exists.
	EnsureSignedIn(ctx context.Context) (Account, error)

	// AcquireResourceToken returns an access token whose audience matches the
	// given resource scope.
	AcquireResourceToken(ctx context.Context, scope string) (string, error)
}
