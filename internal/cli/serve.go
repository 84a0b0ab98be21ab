package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/webintel-network/webledger/internal/api"
	"github.com/webintel-network/webledger/internal/daemon"
	"github.com/webintel-network/webledger/internal/domain"
	"github.com/webintel-network/webledger/internal/infra/sqlite"
	"github.com/webintel-network/webledger/internal/ledger"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the credit ledger daemon",
	Long:  `Start the credit ledger HTTP daemon. Listens until SIGINT/SIGTERM, then drains in-flight operations before exiting.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(daemon.Home(), 0700); err != nil {
		return err
	}

	db, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	led := ledger.New(ledger.Config{
		Shards:         cfg.Ledger.Shards,
		MailboxDepth:   cfg.Ledger.MailboxDepth,
		IdempotencyTTL: cfg.Ledger.TTL(),
	}, db, domain.NewBonusCalculator(domain.DefaultBonusSchedule()))
	defer led.Close()

	srv := api.NewServer(led)
	srv.EnableMetrics()
	httpSrv := &http.Server{
		Addr:    cfg.API.Addr(),
		Handler: srv.Handler(),
	}

	// Shut down on SIGINT/SIGTERM; the deferred ledger.Close drains the
	// shard workers after the listener stops accepting requests.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-stop
		log.Printf("[daemon] received %s, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpSrv.Shutdown(ctx)
	}()

	log.Printf("[daemon] credit ledger listening on %s (db=%s shards=%d)",
		cfg.API.Addr(), cfg.Storage.Path, cfg.Ledger.Shards)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	log.Printf("[daemon] stopped")
	return nil
}
