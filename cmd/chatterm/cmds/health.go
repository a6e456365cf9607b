package cmds

import (
	"fmt"

	"github.com/go-go-golems/chatterm/pkg/chat"
	"github.com/go-go-golems/chatterm/pkg/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check whether the chat backend is reachable and ready",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.Load()
			if err != nil {
				return err
			}
			backend, err := newBackend(s)
			if err != nil {
				return err
			}

			ctrl := chat.NewController(nil)
			report, herr := backend.Health(cmd.Context())
			ctrl.ApplyHealth(report, herr)

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, connectionLabel(ctrl.Connected()))
			if herr != nil {
				_, _ = fmt.Fprintln(out, ctrl.Error())
				return errors.Wrap(herr, "health check")
			}
			_, _ = fmt.Fprintf(out, "status: %s, model_loaded: %t\n", report.Status, report.ModelLoaded)
			if !ctrl.Connected() {
				return errors.New("backend is not ready")
			}
			return nil
		},
	}
}
