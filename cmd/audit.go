package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/GurgoSoft/MIND-sub001/config"
	"github.com/GurgoSoft/MIND-sub001/internal/audit"
	"github.com/GurgoSoft/MIND-sub001/internal/db"
	"github.com/GurgoSoft/MIND-sub001/internal/server"
	"github.com/GurgoSoft/MIND-sub001/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cleanupDomain string
	cleanupDays   int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log maintenance",
}

// auditCleanupCmd removes old audit records, meant to run from cron.
var auditCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete audit records older than --days",
	Long: `Delete audit records of one domain older than --days.
Accepted ranges: users 1-365, agenda and diary 1-3650.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		domain := types.AuditDomain(strings.ToLower(cleanupDomain))
		if lo, hi := audit.RetentionBounds(domain); lo == 0 && hi == 0 {
			return fmt.Errorf("unknown audit domain %q", cleanupDomain)
		}

		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx := cmd.Context()
		store, closeStore, err := openAuditStore(ctx, cfg, domain)
		if err != nil {
			return err
		}
		defer func() { _ = closeStore() }()

		deleted, err := audit.NewLog(domain, store).Cleanup(ctx, cleanupDays)
		if err != nil {
			return err
		}
		logger.Info("audit cleanup done",
			zap.String("domain", string(domain)),
			zap.Int("days", cleanupDays),
			zap.Int64("deleted", deleted),
		)
		return nil
	},
}

func openAuditStore(ctx context.Context, cfg config.Config, domain types.AuditDomain) (audit.Store, func() error, error) {
	if strings.EqualFold(cfg.Audit.Backend, server.AuditBackendMongo) {
		client, err := audit.ConnectMongo(ctx, cfg.Audit.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() error { return client.Disconnect(context.Background()) }
		store, err := audit.NewMongoStore(ctx, client, cfg.Audit.MongoDatabase, domain)
		if err != nil {
			_ = closeFn()
			return nil, nil, err
		}
		return store, closeFn, nil
	}

	conn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := audit.NewPostgresStore(conn, domain)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return store, conn.Close, nil
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditCleanupCmd)
	auditCleanupCmd.Flags().StringVar(&cleanupDomain, "domain", "", "audit domain: users, agenda or diary")
	auditCleanupCmd.Flags().IntVar(&cleanupDays, "days", 90, "keep records newer than this many days")
	_ = auditCleanupCmd.MarkFlagRequired("domain")
}
