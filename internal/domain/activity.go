package domain

import "encoding/json"

type ActivityType string

const (
	ActivityMessage ActivityType = "message"
	ActivityEvent   ActivityType = "event"
	ActivityTyping  ActivityType = "typing"
	ActivityInvoke  ActivityType = "invoke"
)

const (
	// ContentTypeOAuthCard marks an attachment carrying OAuth sign-in metadata.
	ContentTypeOAuthCard = "application/vnd.microsoft.card.oauth"

	// EventStartConversation is the one-shot join event name the upstream bot
	// listens for.
	EventStartConversation = "startConversation"

	// InvokeTokenExchange is the invoke name the upstream bot correlates
	// silent SSO exchanges on.
	InvokeTokenExchange = "signin/tokenExchange"
)

type ChannelAccount struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Attachment keeps its content raw so that non-OAuth attachments survive a
// decode/re-encode round trip untouched.
type Attachment struct {
	ContentType string          `json:"contentType"`
	Content     json.RawMessage `json:"content,omitempty"`
	ContentURL  string          `json:"contentUrl,omitempty"`
	Name        string          `json:"name,omitempty"`
}

// Activity is one unit of conversation traffic in either direction.
type Activity struct {
	ID          string         `json:"id,omitempty"`
	Type        ActivityType   `json:"type"`
	Name        string         `json:"name,omitempty"`
	Text        string         `json:"text,omitempty"`
	Value       any            `json:"value,omitempty"`
	From        ChannelAccount `json:"from"`
	Attachments []Attachment   `json:"attachments,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
}

type TokenExchangeResource struct {
	ID  string `json:"id,omitempty"`
	URI string `json:"uri,omitempty"`
}

// OAuthCard is the decoded content of a ContentTypeOAuthCard attachment.
type OAuthCard struct {
	Text                  string                 `json:"text,omitempty"`
	ConnectionName        string                 `json:"connectionName,omitempty"`
	TokenExchangeResource *TokenExchangeResource `json:"tokenExchangeResource,omitempty"`
}

// ExchangeReady reports whether the card carries everything a silent token
// exchange needs; without it the user is left to the interactive sign-in path.
func (c OAuthCard) ExchangeReady() bool {
	return c.ConnectionName != "" &&
		c.TokenExchangeResource != nil &&
		c.TokenExchangeResource.ID != "" &&
		c.TokenExchangeResource.URI != ""
}

// TokenExchangeValue is the invoke payload posted back for a silent exchange.
// ID must be the card's tokenExchangeResource id, not the activity id.
type TokenExchangeValue struct {
	ID             string `json:"id"`
	ConnectionName string `json:"connectionName"`
	Token          string `json:"token"`
}

// HasOAuthCard reports whether any attachment carries the OAuth-card content
// type, decodable or not. Stripping keys on this; exchange needs OAuthCard.
func (a Activity) HasOAuthCard() bool {
	for _, att := range a.Attachments {
		if att.ContentType == ContentTypeOAuthCard {
			return true
		}
	}
	return false
}

// OAuthCard returns the decoded first OAuth-card attachment, if any. Further
// OAuth attachments on the same activity are never acted on.
func (a Activity) OAuthCard() (OAuthCard, bool) {
	for _, att := range a.Attachments {
		if att.ContentType != ContentTypeOAuthCard {
			continue
		}
		var card OAuthCard
		if err := json.Unmarshal(att.Content, &card); err != nil {
			return OAuthCard{}, false
		}
		return card, true
	}
	return OAuthCard{}, false
}

// StripOAuthCards returns a copy of the activity with every OAuth-card
// attachment removed. Activities without one are returned unchanged,
// attachment slice included.
func (a Activity) StripOAuthCards() Activity {
	if !a.HasOAuthCard() {
		return a
	}

	kept := make([]Attachment, 0, len(a.Attachments))
	for _, att := range a.Attachments {
		if att.ContentType == ContentTypeOAuthCard {
			continue
		}
		kept = append(kept, att)
	}
	if len(kept) == 0 {
		kept = nil
	}
	a.Attachments = kept
	return a
}
