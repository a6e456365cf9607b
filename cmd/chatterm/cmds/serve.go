package cmds

import (
	"time"

	"github.com/go-go-golems/chatterm/pkg/devserver"
	"github.com/spf13/cobra"
)

func NewServeCommand() *cobra.Command {
	var (
		addr        string
		prefix      string
		maxHistory  int
		timeout     time.Duration
		corsOrigins []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local echo backend speaking the chat API",
		Long: `Run a reference backend implementing GET /chat/health and POST /chat/.
Replies echo the message, which is enough to exercise the client end to end.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := devserver.New(
				devserver.WithPrefix(prefix),
				devserver.WithMaxHistory(maxHistory),
				devserver.WithTimeout(timeout),
				devserver.WithCORSOrigins(corsOrigins...),
			)
			return srv.Run(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:8000", "Listen address")
	cmd.Flags().StringVar(&prefix, "prefix", devserver.DefaultPrefix, "API path prefix")
	cmd.Flags().IntVar(&maxHistory, "max-history", devserver.DefaultMaxHistory, "Exchanges of history passed to the responder")
	cmd.Flags().DurationVar(&timeout, "timeout", devserver.DefaultTimeout, "Per-request timeout (0 disables)")
	cmd.Flags().StringSliceVar(&corsOrigins, "cors-origin", []string{"http://localhost:3000"}, "Allowed CORS origins")
	return cmd
}
