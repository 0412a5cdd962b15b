package main

import (
	"fmt"
	"strings"

	"github.com/openmined/foldernotify/internal/utils"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// secret keys are masked before printing. URL-valued secrets keep their host.
var (
	secretKeys = []string{
		"push.verification_token",
		"notify.slack.bot_token",
		"notify.telegram.token",
		"notify.email.sendgrid_api_key",
		"analytics.s3.access_key",
		"analytics.s3.secret_key",
		"auth.token_secret",
	}
	secretURLKeys = []string{
		"notify.slack.webhook_url",
	}
)

func init() {
	rootCmd.AddCommand(newConfigCmd())
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := loadViper(cmd)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			settings := v.AllSettings()
			for _, key := range secretKeys {
				maskKey(settings, key, utils.MaskSecret)
			}
			for _, key := range secretURLKeys {
				maskKey(settings, key, utils.MaskURL)
			}

			out, err := yaml.Marshal(settings)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}

			if used := v.ConfigFileUsed(); used != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), gray.Render("# "+used))
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))

			if err := cfg.Validate(); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), yellow.Render("invalid: "+err.Error()))
			}
			return nil
		},
	}
}

// maskKey rewrites a dotted key in viper's nested settings map
func maskKey(settings map[string]any, key string, mask func(string) string) {
	parts := strings.Split(key, ".")
	m := settings
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			return
		}
		m = next
	}

	last := parts[len(parts)-1]
	if s, ok := m[last].(string); ok && s != "" {
		m[last] = mask(s)
	}
}
