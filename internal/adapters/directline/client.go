package directline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/egdigital/egassist/internal/domain"
	"github.com/egdigital/egassist/internal/ports"
)

const maxTokenResponseBytes = 1 << 20

// Client fetches conversation grants from the token proxy. It never sees the
// upstream secret; the proxy brokers that.
type Client struct {
	TokenURL       string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

var _ ports.TokenSource = (*Client)(nil)

type tokenResponse struct {
	Token          string `json:"token"`
	ConversationID string `json:"conversationId"`
}

// ConversationToken issues one GET against the token proxy. A non-2xx
// response is a TokenFetchError; a 2xx response with a non-JSON content type
// is a ProtocolError (wrong URL or an intercepting gateway). Neither retries.
func (c *Client) ConversationToken(ctx context.Context) (domain.ConversationGrant, error) {
	if c.TokenURL == "" {
		return domain.ConversationGrant{}, fmt.Errorf("token url is empty")
	}

	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, c.TokenURL, nil)
	if err != nil {
		return domain.ConversationGrant{}, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return domain.ConversationGrant{}, fmt.Errorf("request conversation token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		return domain.ConversationGrant{}, fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return domain.ConversationGrant{}, &domain.TokenFetchError{
			Status: resp.StatusCode,
			Body:   domain.TruncateBody(string(body)),
		}
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		return domain.ConversationGrant{}, &domain.ProtocolError{
			ContentType: contentType,
			Body:        domain.TruncateBody(string(body)),
		}
	}

	var payload tokenResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.ConversationGrant{}, fmt.Errorf("decode token response: %w", err)
	}
	if payload.Token == "" {
		return domain.ConversationGrant{}, fmt.Errorf("token response missing token field")
	}

	return domain.ConversationGrant{Token: payload.Token, ConversationID: payload.ConversationID}, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := c.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}
