package cmd

import (
	"github.com/GurgoSoft/MIND-sub001/internal/audit"
	"github.com/GurgoSoft/MIND-sub001/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Account administration",
}

// adminGrantCmd bootstraps administrators; the HTTP API only lets existing
// administrators manage accounts.
var adminGrantCmd = &cobra.Command{
	Use:   "grant <email>",
	Short: "Give an existing account the administrator user type",
	Long: `Move the account registered with <email> to the user type named by
ADMIN_USER_TYPE_CODE (default ADMIN), creating that type on first use.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx := cmd.Context()
		app, err := server.NewApp(ctx, cfg, logger, []server.Service{server.ServiceUsers})
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()

		authSvc, err := app.Auth(ctx)
		if err != nil {
			return err
		}
		user, err := authSvc.GrantAdmin(audit.WithActor(ctx, cfg.Auth.SystemUserID), args[0])
		if err != nil {
			return err
		}
		logger.Info("administrator granted",
			zap.String("user_id", user.ID),
			zap.String("email", user.Email),
		)
		return nil
	},
}

func init() {
	adminCmd.AddCommand(adminGrantCmd)
	rootCmd.AddCommand(adminCmd)
}
