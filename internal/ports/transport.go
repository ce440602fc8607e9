package ports

import (
	"context"

	"github.com/egdigital/egassist/internal/domain"
)

// Transport is an open conversation channel. Activities delivers inbound
// traffic in upstream order; the channel closes when the conversation ends.
type Transport interface {
	Post(ctx context.Context, activity domain.Activity) error
	Activities() <-chan domain.Activity
	Close() error
}

// TransportDialer opens a transport for a conversation grant.
type TransportDialer interface {
	Dial(ctx context.Context, grant domain.ConversationGrant) (Transport, error)
}

// TokenSource obtains a conversation grant from the token proxy.
type TokenSource interface {
	ConversationToken(ctx context.Context) (domain.ConversationGrant, error)
}
