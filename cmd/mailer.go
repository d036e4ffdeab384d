package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/GurgoSoft/MIND-sub001/internal/mail"
	"github.com/GurgoSoft/MIND-sub001/internal/mq"
	"github.com/spf13/cobra"
)

// mailerCmd drains the outbound mail queue into SMTP.
var mailerCmd = &cobra.Command{
	Use:   "mailer",
	Short: "Deliver queued mail over SMTP",
	Long: `Consumes MAIL_QUEUE from the configured broker (MQ_BACKEND) and
delivers each message over SMTP. Used when the services run with
MAIL_TRANSPORT=queue.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		if cfg.Mail.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required for the mailer")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		defer func() { _ = queue.Close() }()

		smtp, err := mail.NewSMTPMailer(cfg.Mail)
		if err != nil {
			return err
		}
		worker := mail.NewWorker(queue, cfg.Mail.Queue, smtp, logger.Named("mailer"))
		if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mailerCmd)
}
