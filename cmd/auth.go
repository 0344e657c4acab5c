// File: cmd/auth.go
package cmd

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/socialgenius/loginforge/internal/auth"
	"github.com/socialgenius/loginforge/internal/observability"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// newAuthCmd creates the `auth` command, which runs a single login attempt
// synchronously and prints the outcome as JSON.
func newAuthCmd() *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Runs one login attempt for a business account and prints the result",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Lets the password come from LOGINFORGE_AUTH_PASSWORD instead of argv.
			return viper.BindPFlag("auth.password", cmd.Flags().Lookup("password"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			businessID, _ := cmd.Flags().GetString("business-id")
			email, _ := cmd.Flags().GetString("email")
			password := viper.GetString("auth.password")

			creds := auth.Credentials{Email: email, Password: password}
			if err := creds.Validate(); err != nil {
				return err
			}
			if businessID == "" {
				return fmt.Errorf("--business-id must not be empty")
			}

			components, err := initializeServeComponents(ctx, logger)
			if err != nil {
				if components != nil {
					components.Shutdown()
				}
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown()

			attemptCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			task := components.Registry.Create(businessID, cancel)

			logger.Info("Running one-shot attempt",
				zap.String("task_id", task.ID),
				zap.String("business_id", businessID),
				zap.String("email", observability.MaskEmail(email)))

			result := components.Runner.Run(attemptCtx, task, creds)

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode result: %w", err)
			}
			fmt.Println(string(out))

			if !result.Success {
				return fmt.Errorf("authentication failed: %s", result.Code)
			}
			return nil
		},
	}

	authCmd.Flags().String("business-id", "", "Business entity the attempt belongs to")
	authCmd.Flags().StringP("email", "e", "", "Account email")
	authCmd.Flags().StringP("password", "p", "", "Account password. Prefer LOGINFORGE_AUTH_PASSWORD over the flag.")

	return authCmd
}

func init() {
	rootCmd.AddCommand(newAuthCmd())
}
