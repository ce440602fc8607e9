package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/egdigital/egassist/internal/adapters/directline"
	identityadapter "github.com/egdigital/egassist/internal/adapters/identity"
	"github.com/egdigital/egassist/internal/adapters/localbot"
	"github.com/egdigital/egassist/internal/domain"
	"github.com/egdigital/egassist/internal/ports"
)

const (
	transportDirectLine = "directline"
	transportLocal      = "local"
)

func newConfig() *viper.Viper {
	cfg := viper.New()
	cfg.SetEnvPrefix("EGASSIST")
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cfg.AutomaticEnv()

	cfg.SetDefault("log.level", "info")
	cfg.SetDefault("serve.listen", "127.0.0.1:8080")
	cfg.SetDefault("serve.upstream_url", "https://directline.botframework.com/v3/directline/tokens/generate")
	cfg.SetDefault("serve.timeout", 15*time.Second)
	cfg.SetDefault("chat.transport", transportLocal)
	cfg.SetDefault("chat.token_url", "http://127.0.0.1:8080/api/directline/token")
	cfg.SetDefault("chat.user_id", "local-user")
	cfg.SetDefault("chat.user_name", "You")
	cfg.SetDefault("directline.base_url", directline.DefaultBaseURL)
	cfg.SetDefault("auth.scope", "openid profile offline_access")
	cfg.SetDefault("auth.listen", "127.0.0.1:8765")
	cfg.SetDefault("auth.timeout", 5*time.Minute)

	if homeDir, err := os.UserHomeDir(); err == nil {
		cfg.SetConfigFile(filepath.Join(homeDir, ".egassist", "config.toml"))
		cfg.SetConfigType("toml")
		_ = cfg.ReadInConfig()
	}

	return cfg
}

func newLogger(cfg *viper.Viper) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if level, err := logrus.ParseLevel(cfg.GetString("log.level")); err == nil {
		log.SetLevel(level)
	}
	return log
}

// wireChat assembles the identity, token source, and transport dialer for
// the configured transport mode. Local mode runs the in-process demo bot
// with a canned identity; directline mode runs the real enterprise flow.
func wireChat(cfg *viper.Viper, log logrus.FieldLogger) (ports.Identity, ports.TokenSource, ports.TransportDialer, error) {
	switch mode := cfg.GetString("chat.transport"); mode {
	case transportLocal:
		id := staticIdentity{
			account: ports.Account{
				ID:   cfg.GetString("chat.user_id"),
				Name: cfg.GetString("chat.user_name"),
			},
		}
		dialer := &localbot.Dialer{Log: log}
		return id, localTokenSource{}, dialer, nil

	case transportDirectLine:
		identity, err := identityadapter.NewAdapter(identityadapter.Config{
			Authority:   cfg.GetString("auth.authority"),
			ClientID:    cfg.GetString("auth.client_id"),
			SignInScope: cfg.GetString("auth.scope"),
			ListenAddr:  cfg.GetString("auth.listen"),
			Timeout:     cfg.GetDuration("auth.timeout"),
		}, nil, log)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("wire identity: %w", err)
		}

		tokens := &directline.Client{TokenURL: cfg.GetString("chat.token_url")}
		dialer := &directline.Dialer{BaseURL: cfg.GetString("directline.base_url"), Log: log}
		return identity, tokens, dialer, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown chat transport %q", mode)
	}
}

// staticIdentity backs the local demo transport. Token exchange against the
// demo bot's sign-in card succeeds with a canned token.
type staticIdentity struct {
	account ports.Account
}

func (s staticIdentity) EnsureSignedIn(context.Context) (ports.Account, error) {
	return s.account, nil
}

func (s staticIdentity) AcquireResourceToken(_ context.Context, scope string) (string, error) {
	return "demo-token-for-" + scope, nil
}

// localTokenSource mints a throwaway grant; the local dialer ignores it.
type localTokenSource struct{}

func (localTokenSource) ConversationToken(context.Context) (domain.ConversationGrant, error) {
	return domain.ConversationGrant{
		Token:          "local-" + uuid.NewString(),
		ConversationID: uuid.NewString(),
	}, nil
}
