package main

import (
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/remarks/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newClaimCommand(configViper *viper.Viper) *cobra.Command {
	var userID, email string
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Attach anonymous comments submitted with an email to a user id",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(configViper)
			if err != nil {
				return err
			}
			if appConfig.ServiceKey == "" {
				return fmt.Errorf("auth.service_key is required to run claims")
			}

			app, err := buildApplication(appConfig)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.linker.ClaimByEmail(cmd.Context(), appConfig.ServiceKey, strings.TrimSpace(userID), strings.TrimSpace(email))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "matched=%d modified=%d\n", result.Matched, result.Modified)
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "Authenticated user id to assign")
	cmd.Flags().StringVar(&email, "email", "", "Author email the comments were submitted with")
	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
