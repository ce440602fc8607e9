package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/egdigital/egassist/internal/domain"
	"github.com/egdigital/egassist/internal/ports"
)

type fakeIdentity struct {
	mu      sync.Mutex
	account ports.Account
	signErr error

	tokenErr error
	block    chan struct{} // when set, AcquireResourceToken waits on it
	scopes   []string
}

func (f *fakeIdentity) EnsureSignedIn(_ context.Context) (ports.Account, error) {
	if f.signErr != nil {
		return ports.Account{}, f.signErr
	}
	return f.account, nil
}

func (f *fakeIdentity) AcquireResourceToken(ctx context.Context, scope string) (string, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	f.scopes = append(f.scopes, scope)
	f.mu.Unlock()
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return "token-for-" + scope, nil
}

func (f *fakeIdentity) requestedScopes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.scopes...)
}

type fakeTransport struct {
	mu      sync.Mutex
	posted  []domain.Activity
	postErr error
	closed  bool

	inbound chan domain.Activity
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{inbound: make(chan domain.Activity, 16)}
}

func (f *fakeTransport) Post(_ context.Context, activity domain.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return f.postErr
	}
	f.posted = append(f.posted, activity)
	return nil
}

func (f *fakeTransport) Activities() <-chan domain.Activity { return f.inbound }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) postedActivities() []domain.Activity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Activity(nil), f.posted...)
}

type fakeTokenSource struct {
	grant domain.ConversationGrant
	err   error
	calls int
}

func (f *fakeTokenSource) ConversationToken(_ context.Context) (domain.ConversationGrant, error) {
	f.calls++
	if f.err != nil {
		return domain.ConversationGrant{}, f.err
	}
	return f.grant, nil
}

type fakeDialer struct {
	mu        sync.Mutex
	dials     int
	lastGrant domain.ConversationGrant
	err       error
	transport *fakeTransport
}

func (f *fakeDialer) Dial(_ context.Context, grant domain.ConversationGrant) (ports.Transport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials++
	f.lastGrant = grant
	if f.err != nil {
		return nil, f.err
	}
	if f.transport == nil {
		return nil, fmt.Errorf("fakeDialer: no transport configured")
	}
	return f.transport, nil
}

func (f *fakeDialer) dialCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials
}
