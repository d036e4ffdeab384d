package cmd

import (
	"os/signal"
	"syscall"

	"github.com/GurgoSoft/MIND-sub001/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server [users|agenda|diary|all]...",
	Short: "Starts one or more MIND HTTP services",
	Long: `Starts MIND HTTP services. Each service listens on its own port
(USERS_PORT, AGENDA_PORT, DIARY_PORT). Usage:

	mind server users
	mind server agenda diary
	mind server all
`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run, err := parseServices(args)
		if err != nil {
			return err
		}

		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := server.NewApp(ctx, cfg, logger, run)
		if err != nil {
			return err
		}
		defer func() {
			if err := app.Close(); err != nil {
				logger.Warn("closing connections", zap.Error(err))
			}
		}()

		servers := make([]*server.Server, 0, len(run))
		for _, s := range run {
			srv, err := server.New(ctx, app, s)
			if err != nil {
				return err
			}
			servers = append(servers, srv)
		}

		// One failing listener stops the others.
		g, gctx := errgroup.WithContext(ctx)
		for _, srv := range servers {
			srv := srv
			g.Go(func() error { return srv.Run(gctx) })
		}
		return g.Wait()
	},
}

func parseServices(args []string) ([]server.Service, error) {
	seen := make(map[server.Service]bool)
	var out []server.Service
	for _, arg := range args {
		if arg == "all" {
			for _, s := range server.AllServices {
				if !seen[s] {
					seen[s] = true
					out = append(out, s)
				}
			}
			continue
		}
		s, err := server.ParseService(arg)
		if err != nil {
			return nil, err
		}
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
