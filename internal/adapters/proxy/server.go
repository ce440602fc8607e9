// Package proxy is the backend half of the chat widget: it brokers the
// secret-bearing conversation token request so the secret never reaches the
// client.
package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/egdigital/egassist/internal/domain"
)

const maxUpstreamResponseBytes = 1 << 20

// Config carries everything the proxy needs. Secret stays server-side only.
type Config struct {
	UpstreamURL    string
	Secret         string
	RequestTimeout time.Duration
}

type Server struct {
	cfg        Config
	router     *mux.Router
	httpClient *http.Client
	log        logrus.FieldLogger

	tokenRequests *prometheus.CounterVec
}

func NewServer(cfg Config, httpClient *http.Client, log logrus.FieldLogger) (*Server, error) {
	if cfg.UpstreamURL == "" {
		return nil, fmt.Errorf("upstream token endpoint is required")
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("upstream secret is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Server{
		cfg:        cfg,
		router:     mux.NewRouter(),
		httpClient: httpClient,
		log:        log,
		tokenRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "egassist_token_requests_total",
			Help: "Conversation token requests served, by status code.",
		}, []string{"code"}),
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/directline/token", s.handleToken).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	registry := prometheus.NewRegistry()
	registry.MustRegister(s.tokenRequests)
	s.router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}

func (s *Server) Handler() http.Handler { return s.router }

type tokenPayload struct {
	Token          string `json:"token"`
	ConversationID string `json:"conversationId,omitempty"`
}

// handleToken forwards the secret-bearing request upstream. Upstream
// rejections pass through verbatim (status and JSON body) so the client can
// log the real error; only a transport-level failure becomes a local 500.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.UpstreamURL, nil)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "failed to fetch conversation token")
		return
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.Secret)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.log.WithError(err).Error("upstream token request failed")
		s.fail(w, http.StatusBadGateway, "failed to fetch conversation token")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamResponseBytes))
	if err != nil {
		s.log.WithError(err).Error("reading upstream token response failed")
		s.fail(w, http.StatusBadGateway, "failed to fetch conversation token")
		return
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		s.log.WithField("status", resp.StatusCode).
			WithField("body", domain.TruncateBody(string(body))).
			Warn("upstream rejected token request")
		s.tokenRequests.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		_, _ = w.Write(body)
		return
	}

	var upstream tokenPayload
	if err := json.Unmarshal(body, &upstream); err != nil || upstream.Token == "" {
		s.log.WithField("body", domain.TruncateBody(string(body))).
			Error("upstream token response unusable")
		s.fail(w, http.StatusBadGateway, "upstream returned an unusable token response")
		return
	}

	s.tokenRequests.WithLabelValues(strconv.Itoa(http.StatusOK)).Inc()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(tokenPayload{
		Token:          upstream.Token,
		ConversationID: upstream.ConversationID,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) fail(w http.ResponseWriter, status int, message string) {
	s.tokenRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// ListenAndServe blocks until ctx is cancelled, then drains with a short
// shutdown grace period.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("token proxy listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
