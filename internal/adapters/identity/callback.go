package identity

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

var (
	ErrStateMismatch   = errors.New("oauth callback state mismatch")
	ErrCallbackTimeout = errors.New("timed out waiting for oauth callback")
	ErrMissingState    = errors.New("expected state is required")
)

func NewState() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// CallbackServer receives the authorization-code redirect of the interactive
// sign-in flow on a loopback port.
type CallbackServer struct {
	expectedState string
	listener      net.Listener
	server        *http.Server
	resultCh      chan callbackResult
	resultOnce    sync.Once
	closeOnce     sync.Once
}

type callbackResult struct {
	code string
	err  error
}

func StartCallbackServer(listenAddr string, expectedState string) (*CallbackServer, error) {
	if expectedState == "" {
		return nil, ErrMissingState
	}
	if listenAddr == "" {
		listenAddr = "127.0.0.1:0"
	}

	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen callback server: %w", err)
	}

	cb := &CallbackServer{
		expectedState: expectedState,
		listener:      listener,
		resultCh:      make(chan callbackResult, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/callback", cb.handleCallback)
	cb.server = &http.Server{Handler: mux}

	go func() {
		if serveErr := cb.server.Serve(cb.listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			cb.trySendResult(callbackResult{err: serveErr})
		}
	}()

	return cb, nil
}

func (c *CallbackServer) RedirectURI() string {
	if tcpAddr, ok := c.listener.Addr().(*net.TCPAddr); ok {
		return fmt.Sprintf("http://localhost:%d/auth/callback", tcpAddr.Port)
	}
	return "http://localhost/auth/callback"
}

func (c *CallbackServer) WaitForCode(timeout time.Duration) (string, error) {
	defer func() { _ = c.Close() }()

	select {
	case result := <-c.resultCh:
		return result.code, result.err
	case <-time.After(timeout):
		return "", ErrCallbackTimeout
	}
}

func (c *CallbackServer) Close() error {
	var closeErr error
	c.closeOnce.Do(func() {
		closeErr = c.server.Close()
	})
	return closeErr
}

func (c *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")

	if state != c.expectedState {
		c.trySendResult(callbackResult{err: ErrStateMismatch})
		http.Error(w, "state mismatch", http.StatusBadRequest)
		return
	}
	if oauthError := r.URL.Query().Get("error"); oauthError != "" {
		description := r.URL.Query().Get("error_description")
		if description != "" {
			oauthError = oauthError + ": " + description
		}
		c.trySendResult(callbackResult{err: errors.New(oauthError)})
		http.Error(w, "oauth error", http.StatusBadRequest)
		return
	}
	if code == "" {
		c.trySendResult(callbackResult{err: errors.New("missing authorization code")})
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}

	c.trySendResult(callbackResult{code: code})
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Sign-in complete. You can close this window and return to the chat."))
}

func (c *CallbackServer) trySendResult(result callbackResult) {
	c.resultOnce.Do(func() {
		c.resultCh <- result
	})
}
