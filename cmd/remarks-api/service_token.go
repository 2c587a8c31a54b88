package main

import (
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/remarks/internal/auth"
	"github.com/MarcoPoloResearchLab/remarks/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServiceTokenCommand(configViper *viper.Viper) *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "service-token",
		Short: "Mint a signed service token for internal callers of the claim endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(configViper)
			if err != nil {
				return err
			}
			if appConfig.ServiceTokenSecret == "" {
				return fmt.Errorf("auth.service_token_secret is required to mint service tokens")
			}
			issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
				SigningSecret: []byte(appConfig.ServiceTokenSecret),
				Issuer:        appConfig.ServiceTokenIssuer,
				TokenTTL:      ttl,
			})
			if err != nil {
				return err
			}
			token, expiresAt, err := issuer.Issue(subject, auth.RoleService)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\nexpires_at=%s\n", token, expiresAt.Format(time.RFC3339))
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Name of the calling service")
	cmd.Flags().DurationVar(&ttl, "ttl", 15*time.Minute, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
