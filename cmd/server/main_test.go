package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openmined/foldernotify/internal/server"
	"github.com/openmined/foldernotify/internal/server/folder"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCmd gives each test fresh flags shaped like the root command's
func newTestCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	addServeFlags(cmd.Flags())
	addGlobalFlags(cmd.Flags())
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	cfg, err := loadConfig(newTestCmd(t))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr)
	assert.Equal(t, ".data/foldernotify.db", cfg.DB.Path)
	assert.Equal(t, []string{"Prebind/", "Postbind/", "test/"}, cfg.Gate.Prefixes)
	assert.Equal(t, 10*time.Second, cfg.Gate.NotifyTimeout)
	assert.Equal(t, 30*time.Second, cfg.Push.Timeout)
	assert.Equal(t, int64(1<<20), cfg.Push.MaxBodySize)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenExpiry)
	assert.Equal(t, "60-M", cfg.HTTP.AdminRate)
	assert.False(t, cfg.Push.AckMalformed)
	assert.False(t, cfg.Completion.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Completion.Interval)
	assert.Equal(t, time.Minute, cfg.Completion.Inactivity)
	assert.Equal(t, 100, cfg.Completion.BatchSize)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("FOLDERNOTIFY_HTTP_ADDR", ":9090")
	t.Setenv("FOLDERNOTIFY_DB_PATH", "/tmp/test.db")
	t.Setenv("FOLDERNOTIFY_GATE_PREFIXES", "incoming,outgoing/")
	t.Setenv("FOLDERNOTIFY_GATE_CACHE_SIZE", "128")
	t.Setenv("FOLDERNOTIFY_PUSH_ACK_MALFORMED", "true")
	t.Setenv("FOLDERNOTIFY_NOTIFY_TELEGRAM_TOKEN", "123:abc")
	t.Setenv("FOLDERNOTIFY_NOTIFY_TELEGRAM_CHAT_ID", "-1001")
	t.Setenv("FOLDERNOTIFY_AUTH_ENABLED", "true")
	t.Setenv("FOLDERNOTIFY_AUTH_TOKEN_SECRET", "test-secret-0123456789")
	t.Setenv("FOLDERNOTIFY_AUTH_TOKEN_EXPIRY", "1h")

	cfg, err := loadConfig(newTestCmd(t))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "/tmp/test.db", cfg.DB.Path)
	assert.Equal(t, []string{"incoming", "outgoing/"}, cfg.Gate.Prefixes)
	assert.Equal(t, 128, cfg.Gate.CacheSize)
	assert.True(t, cfg.Push.AckMalformed)
	assert.Equal(t, "123:abc", cfg.Notify.Telegram.Token)
	assert.Equal(t, int64(-1001), cfg.Notify.Telegram.ChatID)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, "test-secret-0123456789", cfg.Auth.TokenSecret)
	assert.Equal(t, time.Hour, cfg.Auth.TokenExpiry)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigLegacyEnv(t *testing.T) {
	t.Setenv("MONITORED_PREFIXES", "Prebind/,test")
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/T/B/x")
	t.Setenv("ANALYTICS_BUCKET", "analytics")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := loadConfig(newTestCmd(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"Prebind/", "test"}, cfg.Gate.Prefixes)
	assert.Equal(t, "https://hooks.slack.com/services/T/B/x", cfg.Notify.Slack.WebhookURL)
	assert.Equal(t, "s3", cfg.Analytics.Backend)
	assert.Equal(t, "analytics", cfg.Analytics.S3.BucketName)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
}

func TestLoadConfigPort(t *testing.T) {
	t.Setenv("PORT", "8081")
	cfg, err := loadConfig(newTestCmd(t))
	require.NoError(t, err)
	assert.Equal(t, ":8081", cfg.HTTP.Addr)

	cfg, err = loadConfig(newTestCmd(t, "--bind", "127.0.0.1:7000"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.HTTP.Addr)
}

func TestLoadConfigYAML(t *testing.T) {
	dummyConfig := `
http:
  addr: localhost:8080
  cert_file: test-cert.pem
  key_file: test-key.pem

db:
  path: /var/lib/foldernotify/gate.db

gate:
  prefixes: [Prebind/, Postbind/]
  bucket: incoming
  exclude_patterns: ["**/_tmp/**"]

notify:
  slack:
    bot_token: xoxb-test
    channel: C123

analytics:
  backend: table
  table:
    name: completions

completion:
  enabled: true
  interval: 5m
  inactivity: 90s
  suffix: .jsonl.gz
  s3:
    region: us-east-1
    endpoint: http://minio:9000

auth:
  enabled: true
  token_issuer: test-issuer
  token_secret: test-secret-0123456789
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(dummyConfig), 0644))

	cfg, err := loadConfig(newTestCmd(t, "--config", path, "--db", "/override.db"))
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.HTTP.Addr)
	assert.Equal(t, "test-cert.pem", cfg.HTTP.CertFile)
	assert.Equal(t, "test-key.pem", cfg.HTTP.KeyFile)
	assert.Equal(t, "/override.db", cfg.DB.Path)
	assert.Equal(t, []string{"Prebind/", "Postbind/"}, cfg.Gate.Prefixes)
	assert.Equal(t, "incoming", cfg.Gate.Bucket)
	assert.Equal(t, []string{"**/_tmp/**"}, cfg.Gate.ExcludePatterns)
	assert.True(t, cfg.Notify.Slack.BotEnabled())
	assert.Equal(t, "table", cfg.Analytics.Backend)
	assert.Equal(t, "completions", cfg.Analytics.Table.Name)
	assert.True(t, cfg.Completion.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Completion.Interval)
	assert.Equal(t, 90*time.Second, cfg.Completion.Inactivity)
	assert.Equal(t, ".jsonl.gz", cfg.Completion.Suffix)
	assert.Equal(t, "us-east-1", cfg.Completion.S3.Region)
	assert.Equal(t, "http://minio:9000", cfg.Completion.S3.Endpoint)
	assert.Equal(t, "test-issuer", cfg.Auth.TokenIssuer)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(newTestCmd(t, "--config", filepath.Join(t.TempDir(), "nope.yaml")))
	assert.Error(t, err)
}

func TestMaskKey(t *testing.T) {
	settings := map[string]any{
		"auth":   map[string]any{"token_secret": "supersecretvalue"},
		"notify": map[string]any{"slack": map[string]any{"webhook_url": ""}},
	}

	maskKey(settings, "auth.token_secret", func(string) string { return "***" })
	maskKey(settings, "notify.slack.webhook_url", func(string) string { return "***" })
	maskKey(settings, "missing.key", func(string) string { return "***" })

	assert.Equal(t, "***", settings["auth"].(map[string]any)["token_secret"])
	assert.Equal(t, "", settings["notify"].(map[string]any)["slack"].(map[string]any)["webhook_url"])
}

func TestTokenCmd(t *testing.T) {
	t.Setenv("FOLDERNOTIFY_AUTH_TOKEN_SECRET", "test-secret-0123456789")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"token", "--subject", "ops@example.com"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Regexp(t, `^[\w-]+\.[\w-]+\.[\w-]+\n$`, out.String())
}

func TestFoldersCmd(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "gate.db")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"folders", "list", "--db", dbPath})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "no folders")

	seedFolder(t, dbPath, "test/done", 3, 1536)

	out.Reset()
	rootCmd.SetArgs([]string{"folders", "list", "--db", dbPath})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "COMPLETE")
	assert.Contains(t, out.String(), "3 files, 1.5 KiB")

	rootCmd.SetArgs([]string{"folders", "purge", "--db", dbPath})
	assert.Error(t, rootCmd.Execute())

	out.Reset()
	rootCmd.SetArgs([]string{"folders", "purge", "--all", "--db", dbPath})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "purged 1")
}

func seedFolder(t *testing.T, dbPath, key string, files, size int64) {
	t.Helper()
	sqlDB, err := server.OpenDB(&server.DBConfig{Path: dbPath})
	require.NoError(t, err)
	store, err := folder.NewStore(sqlDB)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	_, err = store.MarkFirstSeen(ctx, &folder.Record{FolderKey: key, Bucket: "b", FirstSeenTime: "2024-10-20T12:00:00Z"})
	require.NoError(t, err)
	_, won, err := store.MarkFinal(ctx, key, files, size)
	require.NoError(t, err)
	require.True(t, won)
}
