package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/foldernotify/internal/server"
	"github.com/openmined/foldernotify/internal/server/analytics"
	"github.com/openmined/foldernotify/internal/server/completion"
	"github.com/openmined/foldernotify/internal/utils"
	"github.com/openmined/foldernotify/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix      = "FOLDERNOTIFY"
	configFileName = "config"
	logFileName    = "foldernotify.log"
)

var home, _ = os.UserHomeDir()

var rootCmd = &cobra.Command{
	Use:     "foldernotify",
	Short:   "Notify once when a new folder appears in a bucket",
	Version: version.Detailed(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		closeLog, err := setupLogger(cfg)
		if err != nil {
			return err
		}
		defer closeLog()

		cmd.SilenceUsage = true

		srv, err := server.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		defer slog.Info("Bye!")
		return srv.Start(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	addServeFlags(rootCmd.Flags())
	addGlobalFlags(rootCmd.PersistentFlags())
}

func addServeFlags(fs *pflag.FlagSet) {
	fs.StringP("bind", "b", "", "Address to bind the server (default "+server.DefaultAddr+" or :$PORT)")
	fs.String("cert", "", "Path to the TLS certificate file")
	fs.String("key", "", "Path to the TLS key file")
}

func addGlobalFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "Config file (yaml or json)")
	fs.String("db", "", "Path to the SQLite database (default "+server.DefaultDBPath+")")
	fs.String("log-level", "", "Log level: debug, info, warn, error")
}

func main() {
	// cli commands log to stderr until the config is known
	slog.SetDefault(slog.New(newConsoleHandler(os.Stderr, slog.LevelInfo)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newConsoleHandler(w *os.File, level slog.Level) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(w.Fd()),
	})
}

// setupLogger installs the server logger: tint on stdout and, with log_dir
// set, a plain text copy in log_dir.
func setupLogger(cfg *server.Config) (func(), error) {
	level, err := server.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	stdoutHandler := newConsoleHandler(os.Stdout, level)
	if cfg.LogDir == "" {
		slog.SetDefault(slog.New(stdoutHandler))
		return func() {}, nil
	}

	logFile := filepath.Join(cfg.LogDir, logFileName)
	if err := utils.EnsureParent(logFile); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler)))
	return func() { file.Close() }, nil
}

// legacyEnv maps config keys to the unprefixed variables older deployments set
var legacyEnv = map[string]string{
	"log_level":                "LOG_LEVEL",
	"gate.prefixes":            "MONITORED_PREFIXES",
	"gate.bucket":              "BUCKET_NAME",
	"notify.slack.webhook_url": "SLACK_WEBHOOK_URL",
	"notify.slack.bot_token":   "SLACK_BOT_TOKEN",
	"notify.slack.channel":     "SLACK_CHANNEL",
	"analytics.s3.bucket_name": "ANALYTICS_BUCKET",
	"analytics.s3.object_key":  "ANALYTICS_OBJECT",
}

func setDefaults(v *viper.Viper) {
	addr := server.DefaultAddr
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}

	v.SetDefault("http.addr", addr)
	v.SetDefault("http.cert_file", "")
	v.SetDefault("http.key_file", "")
	v.SetDefault("http.admin_rate", server.DefaultAdminRate)
	v.SetDefault("http.cors_origins", []string{})
	v.SetDefault("http.read_header_timeout", server.DefaultReadHeaderTimeout.String())
	v.SetDefault("http.idle_timeout", server.DefaultIdleTimeout.String())

	v.SetDefault("db.path", server.DefaultDBPath)
	v.SetDefault("db.busy_timeout", "0s")

	v.SetDefault("gate.prefixes", []string{"Prebind/", "Postbind/", "test/"})
	v.SetDefault("gate.bucket", "")
	v.SetDefault("gate.exclude_patterns", []string{})
	v.SetDefault("gate.cache_size", 0)
	v.SetDefault("gate.cache_ttl", "10m")
	v.SetDefault("gate.notify_timeout", "10s")

	v.SetDefault("push.timeout", "30s")
	v.SetDefault("push.max_body_size", 1<<20)
	v.SetDefault("push.verification_token", "")
	v.SetDefault("push.ack_malformed", false)

	v.SetDefault("notify.rate_per_sec", 0)
	v.SetDefault("notify.burst", 1)
	v.SetDefault("notify.timeout", "10s")
	v.SetDefault("notify.slack.webhook_url", "")
	v.SetDefault("notify.slack.bot_token", "")
	v.SetDefault("notify.slack.channel", "")
	v.SetDefault("notify.slack.api_url", "")
	v.SetDefault("notify.telegram.token", "")
	v.SetDefault("notify.telegram.chat_id", 0)
	v.SetDefault("notify.telegram.api_url", "")
	v.SetDefault("notify.email.enabled", false)
	v.SetDefault("notify.email.sendgrid_api_key", "")
	v.SetDefault("notify.email.host", "")
	v.SetDefault("notify.email.from_name", "")
	v.SetDefault("notify.email.from_email", "")
	v.SetDefault("notify.email.to", []string{})
	v.SetDefault("notify.email.subject", "")

	v.SetDefault("analytics.backend", "")
	v.SetDefault("analytics.s3.bucket_name", "")
	v.SetDefault("analytics.s3.object_key", "")
	v.SetDefault("analytics.s3.region", "")
	v.SetDefault("analytics.s3.access_key", "")
	v.SetDefault("analytics.s3.secret_key", "")
	v.SetDefault("analytics.s3.endpoint", "")
	v.SetDefault("analytics.table.name", "")
	v.SetDefault("analytics.table.db_path", "")

	v.SetDefault("completion.enabled", false)
	v.SetDefault("completion.interval", completion.DefaultInterval.String())
	v.SetDefault("completion.inactivity", completion.DefaultInactivity.String())
	v.SetDefault("completion.suffix", "")
	v.SetDefault("completion.batch_size", completion.DefaultBatchSize)
	v.SetDefault("completion.s3.region", "")
	v.SetDefault("completion.s3.access_key", "")
	v.SetDefault("completion.s3.secret_key", "")
	v.SetDefault("completion.s3.endpoint", "")

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.token_issuer", "foldernotify")
	v.SetDefault("auth.token_secret", "")
	v.SetDefault("auth.token_expiry", "24h")

	v.SetDefault("log_dir", "")
	v.SetDefault("log_level", server.DefaultLogLevel)
}

func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func loadConfig(cmd *cobra.Command) (*server.Config, error) {
	v, err := loadViper(cmd)
	if err != nil {
		return nil, err
	}

	cfg := &server.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}

	// an analytics bucket on its own means the csv backend
	if cfg.Analytics.Backend == "" && cfg.Analytics.S3.BucketName != "" {
		cfg.Analytics.Backend = analytics.BackendS3
	}

	if used := v.ConfigFileUsed(); used != "" {
		slog.Debug("config file", "path", used)
	}
	return cfg, nil
}

// loadViper layers flags over env over the config file over defaults
func loadViper(cmd *cobra.Command) (*viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(home, ".foldernotify"))
		v.AddConfigPath("/etc/foldernotify")
		v.SetConfigName(configFileName)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config read %q: %w", v.ConfigFileUsed(), err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, envName(key), legacy); err != nil {
			return nil, err
		}
	}

	bindFlag(v, cmd, "http.addr", "bind")
	bindFlag(v, cmd, "http.cert_file", "cert")
	bindFlag(v, cmd, "http.key_file", "key")
	bindFlag(v, cmd, "db.path", "db")
	bindFlag(v, cmd, "log_level", "log-level")
	return v, nil
}

// bindFlag binds a flag only when the command defines it
func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	if f := cmd.Flags().Lookup(flag); f != nil {
		v.BindPFlag(key, f)
	}
}
