package directline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/egdigital/egassist/internal/domain"
	"github.com/egdigital/egassist/internal/ports"
)

const DefaultBaseURL = "https://directline.botframework.com/v3/directline"

// Dialer opens Direct Line conversations: one REST call to start the
// conversation, then a websocket for the inbound activity stream.
type Dialer struct {
	BaseURL    string
	HTTPClient *http.Client
	WSDialer   *websocket.Dialer
	Log        logrus.FieldLogger
}

var _ ports.TransportDialer = (*Dialer)(nil)

type conversationResponse struct {
	ConversationID string `json:"conversationId"`
	Token          string `json:"token"`
	StreamURL      string `json:"streamUrl"`
}

type activitySet struct {
	Activities []domain.Activity `json:"activities"`
	Watermark  string            `json:"watermark"`
}

func (d *Dialer) Dial(ctx context.Context, grant domain.ConversationGrant) (ports.Transport, error) {
	if grant.Token == "" {
		return nil, domain.ErrTokenUnavailable
	}

	baseURL := d.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/conversations", nil)
	if err != nil {
		return nil, fmt.Errorf("create conversation request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+grant.Token)

	resp, err := d.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("start conversation: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read conversation response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("start conversation: HTTP %d: %s", resp.StatusCode, domain.TruncateBody(string(body)))
	}

	var conv conversationResponse
	if err := json.Unmarshal(body, &conv); err != nil {
		return nil, fmt.Errorf("decode conversation response: %w", err)
	}
	if conv.ConversationID == "" || conv.StreamURL == "" {
		return nil, fmt.Errorf("conversation response missing conversationId or streamUrl")
	}

	token := conv.Token
	if token == "" {
		token = grant.Token
	}

	wsDialer := d.WSDialer
	if wsDialer == nil {
		wsDialer = websocket.DefaultDialer
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, _, err := wsDialer.DialContext(ctx, conv.StreamURL, header)
	if err != nil {
		return nil, fmt.Errorf("dial activity stream: %w", err)
	}

	t := &Transport{
		baseURL:        baseURL,
		conversationID: conv.ConversationID,
		token:          token,
		httpClient:     d.httpClient(),
		conn:           conn,
		activities:     make(chan domain.Activity, 32),
		done:           make(chan struct{}),
		log:            log,
	}
	go t.readLoop()
	return t, nil
}

func (d *Dialer) httpClient() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return http.DefaultClient
}

// Transport is one open Direct Line conversation.
type Transport struct {
	baseURL        string
	conversationID string
	token          string
	httpClient     *http.Client
	conn           *websocket.Conn
	activities     chan domain.Activity
	done           chan struct{}
	log            logrus.FieldLogger
	closeOnce      sync.Once
}

var _ ports.Transport = (*Transport)(nil)

func (t *Transport) Activities() <-chan domain.Activity { return t.activities }

// readLoop forwards inbound activity sets in delivery order until the socket
// dies, then closes the channel.
func (t *Transport) readLoop() {
	defer close(t.activities)
	for {
		_, message, err := t.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.log.WithError(err).Debug("activity stream closed")
			}
			return
		}
		// Direct Line sends empty keepalive frames.
		if len(bytes.TrimSpace(message)) == 0 {
			continue
		}

		var set activitySet
		if err := json.Unmarshal(message, &set); err != nil {
			t.log.WithError(err).Warn("dropping undecodable activity set")
			continue
		}
		// The consumer may have gone away with the channel buffer full;
		// Close must still be able to reap this goroutine.
		for _, activity := range set.Activities {
			select {
			case t.activities <- activity:
			case <-t.done:
				return
			}
		}
	}
}

func (t *Transport) Post(ctx context.Context, activity domain.Activity) error {
	payload, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("encode activity: %w", err)
	}

	url := fmt.Sprintf("%s/conversations/%s/activities", t.baseURL, t.conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create post request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post activity: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
		return fmt.Errorf("post activity: HTTP %d: %s", resp.StatusCode, domain.TruncateBody(string(body)))
	}
	return nil
}

func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		deadline := time.Now().Add(time.Second)
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = t.conn.Close()
	})
	return err
}
