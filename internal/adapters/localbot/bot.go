// Package localbot is an in-process stand-in for the upstream assistant. It
// lets the chat client run end to end without upstream credentials and backs
// the conversation-flow tests.
package localbot

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/egdigital/egassist/internal/domain"
	"github.com/egdigital/egassist/internal/ports"
)

const (
	defaultReplyDelay        = 1500 * time.Millisecond
	defaultInitialReplyDelay = 300 * time.Millisecond

	botID   = "eg-assist"
	botName = "EG Assist"
)

type cannedReply struct {
	keywords []string
	text     string
}

// Keyword table ported from the HR assistant demo flow.
var cannedReplies = []cannedReply{
	{
		keywords: []string{"referral bonus", "bonus"},
		text:     "You are eligible for the referral bonus once your referral completes 90 days. The bonus is paid out with the following payroll cycle.",
	},
	{
		keywords: []string{"leave", "time off", "vacation"},
		text:     "You can take casual leave, sick leave, earned leave and parental leave. Your current balance is in the HR portal under My Leave.",
	},
	{
		keywords: []string{"refer"},
		text:     "To refer someone, open the Careers portal, pick the role and use the Refer a Friend button. You can track the referral status from the same page.",
	},
	{
		keywords: []string{"harassment", "report"},
		text:     "Harassment reports are handled confidentially by the POSH committee. You can raise one through the Speak Up portal or by writing to posh@eg.example.",
	},
	{
		keywords: []string{"travel", "reimbursement"},
		text:     "The travel policy covers economy airfare, hotel up to the city cap and per-diem meals. Claims go through the Expenses app within 30 days of travel.",
	},
	{
		keywords: []string{"ticket"},
		text:     "You can check ticket status in the IT Helpdesk portal under My Requests. Escalations happen automatically after 48 hours without an update.",
	},
}

const (
	welcomeText    = "Hi, I'm EG Assist. How can I help you today?"
	fallbackText   = "I'm processing your request. Could you share a few more details so I can route it correctly?"
	signInNagText  = "Please sign in to continue."
	demoSSOTrigger = "sso-demo"
)

// Dialer returns an in-process transport regardless of the grant.
type Dialer struct {
	ReplyDelay        time.Duration
	InitialReplyDelay time.Duration
	Clock             ports.Clock
	Log               logrus.FieldLogger
}

var _ ports.TransportDialer = (*Dialer)(nil)

func (d *Dialer) Dial(_ context.Context, _ domain.ConversationGrant) (ports.Transport, error) {
	return NewTransport(d.ReplyDelay, d.InitialReplyDelay, d.Clock, d.Log), nil
}

// Transport simulates the conversational service: posted user messages are
// echoed back on the stream (as the real transport does), followed by a
// typing indicator and a delayed canned reply.
type Transport struct {
	replyDelay        time.Duration
	initialReplyDelay time.Duration
	clock             ports.Clock
	log               logrus.FieldLogger

	activities chan domain.Activity

	mu           sync.Mutex
	closed       bool
	firstHandled bool
}

var _ ports.Transport = (*Transport)(nil)

func NewTransport(replyDelay, initialReplyDelay time.Duration, clock ports.Clock, log logrus.FieldLogger) *Transport {
	if replyDelay <= 0 {
		replyDelay = defaultReplyDelay
	}
	if initialReplyDelay <= 0 {
		initialReplyDelay = defaultInitialReplyDelay
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Transport{
		replyDelay:        replyDelay,
		initialReplyDelay: initialReplyDelay,
		clock:             clock,
		log:               log,
		activities:        make(chan domain.Activity, 64),
	}
}

func (t *Transport) Activities() <-chan domain.Activity { return t.activities }

func (t *Transport) Post(_ context.Context, activity domain.Activity) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return domain.ErrTransportClosed
	}
	t.mu.Unlock()

	switch activity.Type {
	case domain.ActivityEvent:
		if activity.Name == domain.EventStartConversation {
			t.emit(t.botMessage(welcomeText))
		}
	case domain.ActivityMessage:
		t.handleUserMessage(activity)
	case domain.ActivityInvoke:
		if activity.Name == domain.InvokeTokenExchange {
			t.emit(t.botMessage("Single sign-on complete, you are signed in."))
		}
	}
	return nil
}

func (t *Transport) handleUserMessage(activity domain.Activity) {
	echo := activity
	echo.ID = uuid.NewString()
	echo.Timestamp = t.clock.Now().UTC().Format(time.RFC3339)
	t.emit(echo)

	t.emit(domain.Activity{
		ID:   uuid.NewString(),
		Type: domain.ActivityTyping,
		From: domain.ChannelAccount{ID: botID, Name: botName},
	})

	if strings.Contains(strings.ToLower(activity.Text), demoSSOTrigger) {
		t.emitSignInCard()
		return
	}

	delay := t.replyDelay
	t.mu.Lock()
	first := !t.firstHandled
	if first {
		t.firstHandled = true
		delay = t.initialReplyDelay
	}
	t.mu.Unlock()

	reply := t.botMessage(replyFor(activity.Text))

	// The reply to the very first message always fires, even if the
	// conversation is torn down meanwhile: a transient UI restart must not
	// lose it. Later replies are dropped once the transport closes.
	go func() {
		time.Sleep(delay)
		if !first {
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if closed {
				return
			}
		}
		t.emit(reply)
	}()
}

// emitSignInCard plays the upstream bot's sign-in fallback: a plain nag
// message plus a message carrying an exchangeable OAuth card. With a working
// identity session the interception middleware answers it silently.
func (t *Transport) emitSignInCard() {
	t.emit(t.botMessage(signInNagText))

	card, err := json.Marshal(domain.OAuthCard{
		Text:           signInNagText,
		ConnectionName: "EntraSSO",
		TokenExchangeResource: &domain.TokenExchangeResource{
			ID:  uuid.NewString(),
			URI: "api://eg-assist/ChatAccess",
		},
	})
	if err != nil {
		t.log.WithError(err).Error("encode sign-in card")
		return
	}

	activity := t.botMessage("")
	activity.Attachments = []domain.Attachment{{
		ContentType: domain.ContentTypeOAuthCard,
		Content:     card,
	}}
	t.emit(activity)
}

func (t *Transport) botMessage(text string) domain.Activity {
	return domain.Activity{
		ID:        uuid.NewString(),
		Type:      domain.ActivityMessage,
		Text:      text,
		From:      domain.ChannelAccount{ID: botID, Name: botName},
		Timestamp: t.clock.Now().UTC().Format(time.RFC3339),
	}
}

func (t *Transport) emit(activity domain.Activity) {
	select {
	case t.activities <- activity:
	default:
		t.log.Warn("local bot stream full, dropping activity")
	}
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func replyFor(text string) string {
	message := strings.ToLower(text)
	for _, reply := range cannedReplies {
		for _, keyword := range reply.keywords {
			if strings.Contains(message, keyword) {
				return reply.text
			}
		}
	}
	return fallbackText
}
