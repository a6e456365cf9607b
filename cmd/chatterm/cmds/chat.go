package cmds

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-go-golems/chatterm/pkg/chat"
	"github.com/go-go-golems/chatterm/pkg/config"
	"github.com/go-go-golems/chatterm/pkg/ui"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewChatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start a chat session. On a terminal this opens the full-screen chat view;
otherwise every line read from stdin is sent as one message and the replies
are printed to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			interactive := isTerminal(os.Stdin) && isTerminal(os.Stdout)
			if interactive {
				closer, err := config.InitFileLogger(s.LogFile, s.LogLevel)
				if err != nil {
					return err
				}
				defer func() {
					_ = closer.Close()
				}()
			}

			backend, err := newBackend(s)
			if err != nil {
				return err
			}
			ctrl, store, err := openController(ctx, s)
			if err != nil {
				return err
			}
			defer closeStore(store)

			if !interactive {
				return runLineMode(ctx, ctrl, backend, cmd.InOrStdin(), cmd.OutOrStdout())
			}

			log.Info().Str("api_base", s.APIBase).Str("store", s.Store.Backend).Msg("starting chat session")
			return ui.Run(ctx, ctrl, backend, ui.Options{
				ExportFormat:   s.ExportFormat,
				ExportDir:      s.ExportDir,
				RenderMarkdown: s.RenderMarkdown,
			})
		},
	}
}

// runLineMode drives the controller from a line-oriented reader. Blank lines
// are skipped; while the backend is unreachable the health check is retried
// before each line and the line is dropped if it still fails.
func runLineMode(ctx context.Context, ctrl *chat.Controller, backend chat.Backend, in io.Reader, out io.Writer) error {
	printBanner := func(gen uint64) {
		if gen == 0 {
			return
		}
		_, _ = fmt.Fprintf(out, "! %s\n", ctrl.Error())
		ctrl.ExpireError(gen)
	}

	printBanner(ctrl.CheckHealth(ctx, backend))
	_, _ = fmt.Fprintln(out, connectionLabel(ctrl.Connected()))

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		ctrl.SetInput(scanner.Text())
		if !ctrl.CanSend() {
			continue
		}
		if !ctrl.Connected() {
			printBanner(ctrl.CheckHealth(ctx, backend))
			if !ctrl.Connected() {
				ctrl.SetInput("")
				continue
			}
		}

		p, ok := ctrl.BeginSend(ctx)
		if !ok {
			continue
		}
		response, err := backend.Send(ctx, p.Message, p.History)
		if gen := ctrl.CompleteSend(ctx, p, response, err); gen != 0 {
			printBanner(gen)
			continue
		}
		_, _ = fmt.Fprintf(out, "AI: %s\n", response)
	}
	return errors.Wrap(scanner.Err(), "read input")
}

func connectionLabel(connected bool) string {
	if connected {
		return "● Connected"
	}
	return "○ Disconnected"
}
