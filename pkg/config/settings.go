package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-go-golems/chatterm/pkg/chat"
	"github.com/go-go-golems/chatterm/pkg/persistence/historystore"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	AppName = "chatterm"

	DefaultAPIBase = "http://localhost:8000/api"
	defaultHomeDir = "~/.chatterm"
)

// Settings is the resolved configuration shared by all commands.
type Settings struct {
	APIBase        string
	RequestTimeout time.Duration
	Store          historystore.Settings
	ExportFormat   chat.ExportFormat
	ExportDir      string
	RenderMarkdown bool
	LogLevel       string
	LogFile        string
}

// AddPersistentFlags declares the flags every command understands.
func AddPersistentFlags(cmd *cobra.Command) {
	fs := cmd.PersistentFlags()
	fs.String("config", "", "Config file (default ~/.chatterm/config.yaml)")
	fs.String("api-base", DefaultAPIBase, "Base URL of the chat backend API")
	fs.Duration("request-timeout", 0, "Timeout for backend requests (0 means none)")
	fs.String("store", historystore.BackendFile, "History store backend: file, sqlite, redis, memory")
	fs.String("store-path", "", "History store location (file or sqlite database)")
	fs.String("store-key", historystore.DefaultKey, "Storage key of the chat history")
	fs.String("redis-addr", "localhost:6379", "Redis address for the redis history store")
	fs.String("export-format", string(chat.FormatMarkdown), "Export format: md or txt")
	fs.String("export-dir", ".", "Directory exports are written to")
	fs.Bool("render-markdown", true, "Render assistant messages as markdown in the TUI")
	fs.String("log-level", "info", "Log level: trace, debug, info, warn, error")
	fs.String("log-file", filepath.Join(defaultHomeDir, AppName+".log"), "Log file used while the TUI owns the terminal")
}

// InitViper wires config file, CHATTERM_* environment variables and flags into viper.
// It must run after flags are parsed, typically from PersistentPreRunE.
func InitViper(cmd *cobra.Command) error {
	viper.SetEnvPrefix(strings.ToUpper(AppName))
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return errors.Wrap(err, "bind flags")
	}

	if cfg := viper.GetString("config"); cfg != "" {
		path, err := homedir.Expand(cfg)
		if err != nil {
			return errors.Wrap(err, "expand config path")
		}
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "read config %s", path)
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	if dir, err := homedir.Expand(defaultHomeDir); err == nil {
		viper.AddConfigPath(dir)
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errors.Wrap(err, "read config")
		}
	}
	return nil
}

// Load resolves Settings from viper.
func Load() (Settings, error) {
	return FromViper(viper.GetViper())
}

func FromViper(v *viper.Viper) (Settings, error) {
	format, err := chat.ParseExportFormat(v.GetString("export-format"))
	if err != nil {
		return Settings{}, err
	}

	backend := strings.ToLower(strings.TrimSpace(v.GetString("store")))
	storePath := v.GetString("store-path")
	if storePath == "" {
		storePath = defaultStorePath(backend)
	}
	if storePath, err = expandPath(storePath); err != nil {
		return Settings{}, err
	}
	exportDir, err := expandPath(v.GetString("export-dir"))
	if err != nil {
		return Settings{}, err
	}
	logFile, err := expandPath(v.GetString("log-file"))
	if err != nil {
		return Settings{}, err
	}

	apiBase := strings.TrimSpace(v.GetString("api-base"))
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}

	return Settings{
		APIBase:        apiBase,
		RequestTimeout: v.GetDuration("request-timeout"),
		Store: historystore.Settings{
			Backend:   backend,
			Path:      storePath,
			Key:       v.GetString("store-key"),
			RedisAddr: v.GetString("redis-addr"),
		},
		ExportFormat:   format,
		ExportDir:      exportDir,
		RenderMarkdown: v.GetBool("render-markdown"),
		LogLevel:       v.GetString("log-level"),
		LogFile:        logFile,
	}, nil
}

func defaultStorePath(backend string) string {
	if backend == historystore.BackendSQLite {
		return filepath.Join(defaultHomeDir, AppName+".db")
	}
	return filepath.Join(defaultHomeDir, historystore.DefaultKey+".json")
}

func expandPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	expanded, err := homedir.Expand(os.ExpandEnv(p))
	if err != nil {
		return "", errors.Wrapf(err, "expand path %q", p)
	}
	return expanded, nil
}
