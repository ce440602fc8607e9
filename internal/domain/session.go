package domain

// MaxUserIDLength is imposed by the chat transport; longer identifiers are
// rejected upstream.
const MaxUserIDLength = 64

type Stage string

const (
	StageIdle          Stage = "idle"
	StagePending       Stage = "pending"
	StageTransportOpen Stage = "transport_open"
	StageJoined        Stage = "joined"
)

// Session holds everything one conversation lifetime knows about itself.
// Identity fields and the conversation token are populated independently;
// neither orders before the other. The conversation token must never be
// logged or written anywhere durable.
type Session struct {
	UserID            string
	UserName          string
	ConversationToken string
	ConversationID    string

	transportOpen bool
	joined        bool
}

// SetIdentity records the signed-in account, truncating the identifier to the
// transport's limit.
func (s *Session) SetIdentity(userID, userName string) {
	s.UserID = TruncateUserID(userID)
	s.UserName = userName
}

func (s *Session) SetConversationToken(token, conversationID string) {
	s.ConversationToken = token
	s.ConversationID = conversationID
}

func (s *Session) MarkTransportOpen() {
	s.transportOpen = true
}

// MarkJoined latches the join flag. It returns true exactly once; the caller
// must latch before issuing the join post so re-entrant calls cannot post
// twice.
func (s *Session) MarkJoined() bool {
	if s.joined {
		return false
	}
	s.joined = true
	return true
}

func (s Session) Joined() bool { return s.joined }

// Stage reports the furthest bootstrap milestone reached. Identity and token
// acquisition overlap, so everything between "nothing known" and "transport
// open" collapses into StagePending.
func (s Session) Stage() Stage {
	switch {
	case s.joined:
		return StageJoined
	case s.transportOpen:
		return StageTransportOpen
	case s.UserID != "" || s.ConversationToken != "":
		return StagePending
	default:
		return StageIdle
	}
}

// Ready reports whether the session can converse: transport open and an
// identity to speak as.
func (s *Session) Ready() bool {
	return s.transportOpen && s.UserID != ""
}

// ConversationGrant is what the token proxy hands out: a short-lived bearer
// credential, plus the conversation id when the upstream includes one.
type ConversationGrant struct {
	Token          string
	ConversationID string
}

func TruncateUserID(id string) string {
	if len(id) <= MaxUserIDLength {
		return id
	}
	return id[:MaxUserIDLength]
}
