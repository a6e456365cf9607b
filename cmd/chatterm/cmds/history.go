package cmds

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/huh"
	"github.com/go-go-golems/chatterm/pkg/chat"
	"github.com/go-go-golems/chatterm/pkg/config"
	"github.com/go-go-golems/chatterm/pkg/persistence/historystore"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/weaviate/tiktoken-go"
	"gopkg.in/yaml.v3"
)

func NewHistoryCommand() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect, export or clear the stored transcript",
	}
	historyCmd.AddCommand(
		newHistoryShowCommand(),
		newHistoryExportCommand(),
		newHistoryClearCommand(),
	)
	return historyCmd
}

// loadHistory reads the stored transcript without seeding a greeting.
func loadHistory(cmd *cobra.Command, s config.Settings) ([]chat.Message, error) {
	store, err := historystore.New(s.Store)
	if err != nil {
		return nil, errors.Wrap(err, "open history store")
	}
	defer closeStore(store)

	msgs, _, err := store.Load(cmd.Context())
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func newHistoryShowCommand() *cobra.Command {
	var (
		output string
		render bool
		stats  bool
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored transcript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.Load()
			if err != nil {
				return err
			}
			msgs, err := loadHistory(cmd, s)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := writeHistory(out, msgs, output, render); err != nil {
				return err
			}
			if stats {
				return printHistoryStats(out, msgs)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text, json, yaml")
	cmd.Flags().BoolVar(&render, "render", false, "Render the transcript as markdown (text output only)")
	cmd.Flags().BoolVar(&stats, "stats", false, "Print message, line and token statistics")
	return cmd
}

func writeHistory(w io.Writer, msgs []chat.Message, output string, render bool) error {
	switch strings.ToLower(output) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if msgs == nil {
			msgs = []chat.Message{}
		}
		return enc.Encode(msgs)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer func() {
			_ = enc.Close()
		}()
		return enc.Encode(msgs)
	case "text", "":
	default:
		return errors.Errorf("unknown output format %q", output)
	}

	if len(msgs) == 0 {
		_, err := fmt.Fprintln(w, "No messages yet")
		return err
	}
	format := chat.FormatText
	if render {
		format = chat.FormatMarkdown
	}
	content, err := chat.FormatTranscript(msgs, format)
	if err != nil {
		return err
	}
	if render {
		rendered, err := glamour.Render(content, "dark")
		if err != nil {
			return errors.Wrap(err, "render markdown")
		}
		_, err = fmt.Fprint(w, rendered)
		return err
	}
	_, err = fmt.Fprintln(w, content)
	return err
}

func printHistoryStats(w io.Writer, msgs []chat.Message) error {
	content, err := chat.FormatTranscript(msgs, chat.FormatText)
	if err != nil {
		return err
	}
	tokenCounter, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return errors.Wrap(err, "initialize token counter")
	}
	user := 0
	for _, m := range msgs {
		if m.IsUser {
			user++
		}
	}

	_, _ = fmt.Fprintf(w, "Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Messages: %d (%d user, %d assistant)\n", len(msgs), user, len(msgs)-user)
	_, _ = fmt.Fprintf(w, "  Tokens:   %d\n", len(tokenCounter.Encode(content, nil, nil)))
	_, _ = fmt.Fprintf(w, "  Lines:    %d\n", strings.Count(content, "\n")+1)
	_, _ = fmt.Fprintf(w, "  Size:     %d bytes\n", len(content))
	return nil
}

func newHistoryExportCommand() *cobra.Command {
	var (
		format string
		dir    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stored transcript to chat_history.md or chat_history.txt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.Load()
			if err != nil {
				return err
			}
			f := s.ExportFormat
			if format != "" {
				if f, err = chat.ParseExportFormat(format); err != nil {
					return err
				}
			}
			if dir == "" {
				dir = s.ExportDir
			}

			msgs, err := loadHistory(cmd, s)
			if err != nil {
				return err
			}
			path, err := chat.WriteExport(dir, msgs, f)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Exported %d messages to %s\n", len(msgs), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "Export format: md or txt (defaults to --export-format)")
	cmd.Flags().StringVar(&dir, "dir", "", "Target directory (defaults to --export-dir)")
	return cmd
}

func newHistoryClearCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the stored transcript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.Load()
			if err != nil {
				return err
			}
			if !yes {
				if !isTerminal(os.Stdin) {
					return errors.New("refusing to clear history without --yes")
				}
				confirmed := false
				form := huh.NewForm(huh.NewGroup(
					huh.NewConfirm().
						Title("Clear the stored chat history?").
						Affirmative("Clear").
						Negative("Cancel").
						Value(&confirmed),
				))
				if err := form.Run(); err != nil {
					return errors.Wrap(err, "confirmation prompt")
				}
				if !confirmed {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
					return nil
				}
			}

			ctrl, store, err := openController(cmd.Context(), s)
			if err != nil {
				return err
			}
			defer closeStore(store)
			if err := ctrl.Clear(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "History cleared")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}
