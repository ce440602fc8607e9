package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/egdigital/egassist/internal/adapters/prompts"
	chatui "github.com/egdigital/egassist/internal/adapters/render/chat"
	"github.com/egdigital/egassist/internal/application"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Open an interactive chat session",
		Long:  "chat signs you in, opens a conversation over the configured transport, and starts the terminal chat UI. Sign-in cards arriving on the stream are exchanged for tokens silently and never shown.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := newConfig()
			log := newLogger(cfg)

			identity, tokens, dialer, err := wireChat(cfg, log)
			if err != nil {
				return err
			}

			promptList, err := prompts.Load(cfg)
			if err != nil {
				return fmt.Errorf("load prompt catalog: %w", err)
			}

			ctx := cmd.Context()
			boot := application.NewBootstrap(identity, tokens, dialer, log)
			defer func() { _ = boot.Close() }()

			program := tea.NewProgram(
				chatui.New(chatui.Options{Prompts: promptList, Log: log}),
				tea.WithAltScreen(),
				tea.WithContext(ctx),
			)

			// Bootstrap runs off the UI goroutine. If it parks short of
			// ready, nothing is sent and the UI keeps its waiting state.
			go func() {
				boot.Run(ctx)

				session := boot.Session()
				if !session.Ready() {
					return
				}

				transport := boot.Transport()
				pipeline := application.NewPipeline(transport, session.UserID, session.UserName, log)
				pipeline.OnFirstSubmit(func() {
					program.Send(chatui.OverlayDismissed{})
				})

				interceptor := application.NewInterceptor(identity, transport, session.UserID, log)
				stream := interceptor.Pipe(ctx, transport.Activities())

				program.Send(chatui.SessionReady{
					Pipeline:   pipeline,
					Activities: stream,
					UserID:     session.UserID,
					UserName:   session.UserName,
				})
			}()

			_, err = program.Run()
			return err
		},
	}
}
