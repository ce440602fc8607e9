package application

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/egdigital/egassist/internal/domain"
	"github.com/egdigital/egassist/internal/ports"
)

const defaultExchangeTimeout = 30 * time.Second

// Best-effort, English-only. Catches the bot's plain "please sign in" prompt
// text so the UI never shows a sign-in nag alongside a silent exchange.
var signInPromptPattern = regexp.MustCompile(`(?i)\b(sign[ -]?in|log[ -]?in|login)\b`)

// Poster is the outbound half of a transport.
type Poster interface {
	Post(ctx context.Context, activity domain.Activity) error
}

// Interceptor sits between the transport's inbound stream and the UI. Every
// inbound activity passes through Intercept exactly once, in delivery order.
// OAuth sign-in cards are stripped from what the UI sees; cards that carry a
// token-exchange resource additionally trigger a silent exchange posted back
// over the transport without ever blocking the stream.
type Interceptor struct {
	identity ports.Identity
	poster   Poster
	userID   string
	log      logrus.FieldLogger

	exchangeTimeout time.Duration
	inflight        sync.WaitGroup
}

func NewInterceptor(identity ports.Identity, poster Poster, userID string, log logrus.FieldLogger) *Interceptor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Interceptor{
		identity:        identity,
		poster:          poster,
		userID:          userID,
		log:             log,
		exchangeTimeout: defaultExchangeTimeout,
	}
}

// Intercept rewrites one inbound activity for the UI. The second return is
// false when the activity should be suppressed entirely. The rewrite is
// synchronous; any token exchange it kicks off is not waited for.
func (i *Interceptor) Intercept(activity domain.Activity) (domain.Activity, bool) {
	if activity.Type != domain.ActivityMessage {
		return activity, true
	}

	if !activity.HasOAuthCard() {
		if len(activity.Attachments) == 0 && activity.Text != "" && signInPromptPattern.MatchString(activity.Text) {
			return domain.Activity{}, false
		}
		return activity, true
	}

	// Stripping keys on the content type alone; a card whose content does
	// not decode still never reaches the UI. The exchange needs the decoded
	// card.
	if card, ok := activity.OAuthCard(); ok && card.ExchangeReady() {
		i.inflight.Add(1)
		go i.exchange(card)
	}

	return activity.StripOAuthCards(), true
}

// exchange swaps the locally held identity for a resource-scoped token and
// posts it back. Failures are logged and swallowed; nothing here reaches the
// UI stream and nothing retries.
func (i *Interceptor) exchange(card domain.OAuthCard) {
	defer i.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), i.exchangeTimeout)
	defer cancel()

	resource := card.TokenExchangeResource

	token, err := i.identity.AcquireResourceToken(ctx, resource.URI)
	if err != nil {
		exchErr := &domain.ExchangeError{ResourceID: resource.ID, Err: err}
		i.log.WithField("connection", card.ConnectionName).WithError(exchErr).Warn("silent token exchange failed")
		return
	}

	// The invoke correlates on the card's resource id, not the activity id.
	invoke := domain.Activity{
		Type: domain.ActivityInvoke,
		Name: domain.InvokeTokenExchange,
		Value: domain.TokenExchangeValue{
			ID:             resource.ID,
			ConnectionName: card.ConnectionName,
			Token:          token,
		},
		From: domain.ChannelAccount{ID: i.userID},
	}
	if err := i.poster.Post(ctx, invoke); err != nil {
		i.log.WithField("resource_id", resource.ID).WithError(err).Warn("posting token exchange invoke failed")
	}
}

// Pipe runs the interceptor as a stream stage: activities from in are
// rewritten in order and delivered on the returned channel. The output closes
// when in closes or ctx is done; in-flight exchanges are left to finish on
// their own.
func (i *Interceptor) Pipe(ctx context.Context, in <-chan domain.Activity) <-chan domain.Activity {
	out := make(chan domain.Activity)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case activity, ok := <-in:
				if !ok {
					return
				}
				rewritten, deliver := i.Intercept(activity)
				if !deliver {
					continue
				}
				select {
				case out <- rewritten:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// WaitExchanges blocks until no exchange is in flight. Test hook.
func (i *Interceptor) WaitExchanges() {
	i.inflight.Wait()
}
