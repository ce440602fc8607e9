package application

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/egdigital/egassist/internal/domain"
	"github.com/egdigital/egassist/internal/ports"
)

// Bootstrap sequences a session from nothing known to ready to converse:
// identity and conversation token are acquired independently, the transport
// opens once a token exists, and a single join event is posted once both the
// transport and an identity exist. Every failure is a soft failure: the
// session parks at its current stage and the UI keeps showing a waiting
// indicator. There are no automatic retries.
type Bootstrap struct {
	identity ports.Identity
	tokens   ports.TokenSource
	dialer   ports.TransportDialer
	log      logrus.FieldLogger

	mu          sync.Mutex
	session     domain.Session
	transport   ports.Transport
	dialedToken string
}

func NewBootstrap(identity ports.Identity, tokens ports.TokenSource, dialer ports.TransportDialer, log logrus.FieldLogger) *Bootstrap {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Bootstrap{
		identity: identity,
		tokens:   tokens,
		dialer:   dialer,
		log:      log,
	}
}

// Session returns a snapshot of the session state.
func (b *Bootstrap) Session() domain.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

// Transport returns the open transport, or nil before OpenTransport succeeds.
func (b *Bootstrap) Transport() ports.Transport {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transport
}

// AcquireIdentity resolves the signed-in account and records it on the
// session, truncating the user id to the transport's limit.
func (b *Bootstrap) AcquireIdentity(ctx context.Context) error {
	account, err := b.identity.EnsureSignedIn(ctx)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.session.SetIdentity(account.ID, account.Name)
	b.mu.Unlock()
	return nil
}

// FetchConversationToken asks the token proxy for a conversation grant. On
// any failure the token stays unset and the session stays parked; the caller
// decides whether the error is worth surfacing beyond a log line.
func (b *Bootstrap) FetchConversationToken(ctx context.Context) error {
	grant, err := b.tokens.ConversationToken(ctx)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.session.SetConversationToken(grant.Token, grant.ConversationID)
	b.mu.Unlock()
	return nil
}

// OpenTransport dials the transport for the current conversation token.
// Calling it again with an unchanged token reuses the open transport instead
// of dialing twice.
func (b *Bootstrap) OpenTransport(ctx context.Context) error {
	b.mu.Lock()
	token := b.session.ConversationToken
	conversationID := b.session.ConversationID
	if token == "" {
		b.mu.Unlock()
		return domain.ErrTokenUnavailable
	}
	if b.transport != nil && b.dialedToken == token {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	transport, err := b.dialer.Dial(ctx, domain.ConversationGrant{Token: token, ConversationID: conversationID})
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.transport != nil && b.dialedToken == token {
		// lost the race to a concurrent open; keep the first transport
		_ = transport.Close()
		return nil
	}
	b.transport = transport
	b.dialedToken = token
	b.session.MarkTransportOpen()
	return nil
}

// Join posts the one-time startConversation event. The joined flag latches
// before the post goes out, so re-entrant calls never post twice, and a
// failed post is logged without resetting the latch.
func (b *Bootstrap) Join(ctx context.Context) error {
	b.mu.Lock()
	if !b.session.Ready() {
		b.mu.Unlock()
		return errors.New("session not ready to join")
	}
	if !b.session.MarkJoined() {
		b.mu.Unlock()
		return nil
	}
	transport := b.transport
	userID := b.session.UserID
	userName := b.session.UserName
	b.mu.Unlock()

	event := domain.Activity{
		Type: domain.ActivityEvent,
		Name: domain.EventStartConversation,
		From: domain.ChannelAccount{ID: userID, Name: userName},
	}
	if err := transport.Post(ctx, event); err != nil {
		b.log.WithError(err).Warn("startConversation event post failed")
	}
	return nil
}

// Run walks the whole bootstrap: identity and token in parallel, then
// transport, then join. Each failure is logged and parks the session where it
// stands.
func (b *Bootstrap) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := b.AcquireIdentity(ctx); err != nil {
			b.log.WithError(err).Error("identity acquisition failed, session stays pending")
		}
	}()
	go func() {
		defer wg.Done()
		if err := b.FetchConversationToken(ctx); err != nil {
			b.logTokenFailure(err)
		}
	}()
	wg.Wait()

	if err := b.OpenTransport(ctx); err != nil {
		if !errors.Is(err, domain.ErrTokenUnavailable) {
			b.log.WithError(err).Error("opening transport failed, session stays pending")
		}
		return
	}
	if b.Session().UserID == "" {
		return
	}
	if err := b.Join(ctx); err != nil {
		b.log.WithError(err).Warn("join skipped")
	}
}

func (b *Bootstrap) logTokenFailure(err error) {
	var fetchErr *domain.TokenFetchError
	var protoErr *domain.ProtocolError
	switch {
	case errors.As(err, &fetchErr):
		b.log.WithField("status", fetchErr.Status).
			WithField("body", domain.TruncateBody(fetchErr.Body)).
			Error("conversation token fetch rejected")
	case errors.As(err, &protoErr):
		b.log.WithField("content_type", protoErr.ContentType).
			WithField("body", domain.TruncateBody(protoErr.Body)).
			Error("conversation token endpoint returned non-JSON, check the token URL")
	default:
		b.log.WithError(err).Error("conversation token fetch failed")
	}
}

// Close releases the transport subscription. In-flight exchange posts are
// left to finish on their own.
func (b *Bootstrap) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.transport == nil {
		return nil
	}
	err := b.transport.Close()
	b.transport = nil
	b.dialedToken = ""
	return err
}
