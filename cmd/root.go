package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "egassist",
		Short:         "EG Assist: enterprise chat assistant with single sign-on",
		Long:          "egassist runs the EG Assist conversation token proxy (serve) and the terminal chat client (chat). The client signs the user in against the enterprise identity authority, bootstraps a conversation over the chat transport, and completes sign-in card token exchanges silently.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(),
		newChatCmd(),
	)

	return rootCmd
}
