package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Lovelumine/AYumeRNA/auth"
	"github.com/Lovelumine/AYumeRNA/config"
)

// newTokenCmd signs a development token with the configured secret.
func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token for local testing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Auth.Mode != config.AuthModeJWT {
				return fmt.Errorf("%w: tokens can only be signed in %q auth mode", config.ErrInvalidConfig, config.AuthModeJWT)
			}
			if err := cfg.Auth.Validate(); err != nil {
				return err
			}
			subject, _ := cmd.Flags().GetString("subject")
			username, _ := cmd.Flags().GetString("username")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			bearer, err := auth.NewBearerJWT([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer)
			if err != nil {
				return err
			}
			token, err := bearer.Issue(subject, username, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().String("subject", "1", "User id carried in the sub claim")
	cmd.Flags().String("username", "dev", "User name claim")
	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
