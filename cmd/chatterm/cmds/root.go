package cmds

import (
	"context"
	"os"

	"github.com/go-go-golems/chatterm/pkg/chat"
	"github.com/go-go-golems/chatterm/pkg/client"
	"github.com/go-go-golems/chatterm/pkg/config"
	"github.com/go-go-golems/chatterm/pkg/persistence/historystore"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewRootCommand builds the chatterm command tree. Running the root command
// without a subcommand starts a chat session.
func NewRootCommand() *cobra.Command {
	chatCmd := NewChatCommand()

	rootCmd := &cobra.Command{
		Use:   config.AppName,
		Short: "A terminal client for a chat backend",
		Long: `chatterm talks to a chat backend exposing GET /chat/health and POST /chat/.

The transcript is kept in a local history store (JSON file by default, sqlite,
redis or memory) and can be exported as markdown or plain text.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.InitViper(cmd); err != nil {
				return err
			}
			s, err := config.Load()
			if err != nil {
				return err
			}
			config.InitConsoleLogger(os.Stderr, s.LogLevel)
			return nil
		},
		RunE: chatCmd.RunE,
	}
	config.AddPersistentFlags(rootCmd)

	rootCmd.AddCommand(
		chatCmd,
		NewHealthCommand(),
		NewSendCommand(),
		NewHistoryCommand(),
		NewServeCommand(),
	)
	return rootCmd
}

func newBackend(s config.Settings) (*client.Client, error) {
	return client.New(s.APIBase, client.WithTimeout(s.RequestTimeout))
}

// openController opens the configured store and restores the transcript into a controller.
func openController(ctx context.Context, s config.Settings) (*chat.Controller, historystore.Store, error) {
	store, err := historystore.New(s.Store)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open history store")
	}
	ctrl := chat.NewController(store)
	ctrl.Restore(ctx)
	return ctrl, store, nil
}

func closeStore(store historystore.Store) {
	if err := store.Close(); err != nil {
		log.Warn().Err(err).Msg("could not close history store")
	}
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
