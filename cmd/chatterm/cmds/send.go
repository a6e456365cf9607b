package cmds

import (
	"fmt"
	"strings"

	"github.com/go-go-golems/chatterm/pkg/chat"
	"github.com/go-go-golems/chatterm/pkg/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewSendCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "send <message...>",
		Short: "Send one message and print the reply",
		Long: `Send one message to the backend, append the exchange to the stored
transcript and print the reply. Only the current exchange is sent as context.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			backend, err := newBackend(s)
			if err != nil {
				return err
			}
			ctrl, store, err := openController(ctx, s)
			if err != nil {
				return err
			}
			defer closeStore(store)

			ctrl.SetInput(strings.Join(args, " "))
			err = ctrl.Send(ctx, backend)
			switch {
			case errors.Is(err, chat.ErrSendSkipped):
				return errors.New("message is empty")
			case err != nil:
				return errors.Wrap(err, chat.SendErrorText)
			}

			msgs := ctrl.Messages()
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), msgs[len(msgs)-1].Text)
			return nil
		},
	}
}
