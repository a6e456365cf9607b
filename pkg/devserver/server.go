package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-go-golems/chatterm/pkg/chat"
	"github.com/go-go-golems/chatterm/pkg/client"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	MaxMessageLength  = 2000
	DefaultMaxHistory = 3
	DefaultTimeout    = 60 * time.Second
	DefaultPrefix     = "/api"

	// FallbackResponse is answered when the responder fails or returns nothing.
	FallbackResponse = "I'm not sure how to respond to that. Could you rephrase your question?"
)

// Responder produces the assistant reply for one request.
type Responder interface {
	Respond(ctx context.Context, message string, history []chat.Turn) (string, error)
}

type ResponderFunc func(ctx context.Context, message string, history []chat.Turn) (string, error)

func (f ResponderFunc) Respond(ctx context.Context, message string, history []chat.Turn) (string, error) {
	return f(ctx, message, history)
}

// EchoResponder repeats the message back, noting how many turns of context it received.
type EchoResponder struct{}

func (EchoResponder) Respond(_ context.Context, message string, history []chat.Turn) (string, error) {
	if len(history) == 0 {
		return "You said: " + message, nil
	}
	return fmt.Sprintf("You said: %s (with %d turns of context)", message, len(history)), nil
}

// Server is a local chat backend implementing GET /chat/health and POST /chat/.
type Server struct {
	responder   Responder
	maxHistory  int
	timeout     time.Duration
	prefix      string
	corsOrigins map[string]bool
}

type Option func(*Server)

// WithResponder sets the reply source. A nil responder reports model_loaded=false.
func WithResponder(r Responder) Option {
	return func(s *Server) { s.responder = r }
}

// WithMaxHistory keeps only the last n exchanges (2n turns) of the request history.
func WithMaxHistory(n int) Option {
	return func(s *Server) { s.maxHistory = n }
}

// WithTimeout bounds request handling; expired requests get 504.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// WithPrefix mounts the endpoints under an API prefix such as /api.
func WithPrefix(prefix string) Option {
	return func(s *Server) { s.prefix = strings.TrimRight(prefix, "/") }
}

func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) {
		for _, o := range origins {
			if o = strings.TrimSpace(o); o != "" {
				s.corsOrigins[o] = true
			}
		}
	}
}

func New(opts ...Option) *Server {
	s := &Server{
		responder:   EchoResponder{},
		maxHistory:  DefaultMaxHistory,
		timeout:     DefaultTimeout,
		prefix:      DefaultPrefix,
		corsOrigins: map[string]bool{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the HTTP handler with CORS applied.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /chat/health", s.handleHealth)
	api.HandleFunc("POST /chat/", s.handleChat)
	api.HandleFunc("POST /chat", s.handleChat)

	var h http.Handler = api
	if s.prefix != "" {
		root := http.NewServeMux()
		root.Handle(s.prefix+"/", http.StripPrefix(s.prefix, api))
		h = root
	}
	return s.cors(h)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{Handler: s.Handler()}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down dev server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("dev server shutdown error")
			return err
		}
		return nil
	})
	eg.Go(func() error {
		log.Info().Str("addr", ln.Addr().String()).Str("prefix", s.prefix).Msg("starting dev chat backend")
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("dev server listen error")
			return err
		}
		return nil
	})
	return eg.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	log.Debug().Msg("health check")
	writeJSON(w, http.StatusOK, chat.HealthReport{
		Status:      "healthy",
		ModelLoaded: s.responder != nil,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.responder == nil {
		writeDetail(w, http.StatusServiceUnavailable, "model not loaded")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return
	}
	message, turns, err := validateRequest(req)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	history := lastTurns(turns, s.maxHistory*2)

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	reply, err := s.responder.Respond(ctx, message, history)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		writeDetail(w, http.StatusGatewayTimeout, "Request timeout")
		return
	case err != nil:
		log.Error().Err(err).Msg("error while generating response")
		reply = FallbackResponse
	case strings.TrimSpace(reply) == "":
		reply = FallbackResponse
	}
	writeJSON(w, http.StatusOK, client.ChatResponse{Response: reply})
}

// chatRequest mirrors client.ChatRequest with pointers so that missing fields
// can be told apart from empty ones.
type chatRequest struct {
	Message *string `json:"message"`
	History []struct {
		Role    chat.Role `json:"role"`
		Content *string   `json:"content"`
	} `json:"history"`
}

func validateRequest(req chatRequest) (string, []chat.Turn, error) {
	if req.Message == nil {
		return "", nil, errors.New("message is required")
	}
	// the length limit applies to the raw message, surrounding whitespace included
	if utf8.RuneCountInString(*req.Message) > MaxMessageLength {
		return "", nil, errors.Errorf("message must be at most %d characters", MaxMessageLength)
	}
	message := strings.TrimSpace(*req.Message)
	if message == "" {
		return "", nil, errors.New("message cannot be empty or whitespace")
	}
	turns := make([]chat.Turn, 0, len(req.History))
	for i, t := range req.History {
		if t.Role != chat.RoleUser && t.Role != chat.RoleAssistant {
			return "", nil, errors.Errorf("history[%d]: invalid role %q", i, t.Role)
		}
		if t.Content == nil {
			return "", nil, errors.Errorf("history[%d]: content is required", i)
		}
		turns = append(turns, chat.Turn{Role: t.Role, Content: *t.Content})
	}
	return message, turns, nil
}

func lastTurns(turns []chat.Turn, n int) []chat.Turn {
	if n <= 0 {
		return []chat.Turn{}
	}
	if len(turns) > n {
		return turns[len(turns)-n:]
	}
	return turns
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.corsOrigins[origin] {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "*")
			h.Add("Vary", "Origin")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
