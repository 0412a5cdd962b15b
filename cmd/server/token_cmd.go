package main

import (
	"fmt"

	"github.com/openmined/foldernotify/internal/server/auth"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newTokenCmd())
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin API token signed with auth.token_secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			expiry, _ := cmd.Flags().GetDuration("expiry")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			token, err := auth.NewAuthService(&cfg.Auth).IssueToken(subject, expiry)
			if err != nil {
				return err
			}

			if !cfg.Auth.Enabled {
				fmt.Fprintln(cmd.ErrOrStderr(), yellow.Render("auth is disabled, the token is only checked once auth.enabled is set"))
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringP("subject", "s", "", "Who the token is for")
	cmd.Flags().Duration("expiry", 0, "Token lifetime (default auth.token_expiry)")
	cmd.MarkFlagRequired("subject")
	return cmd
}
