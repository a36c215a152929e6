package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wafdrill/wafdrill/internal/stubtarget"
)

var targetCmd = &cobra.Command{
	Use:   "target",
	Short: "Serve a stub target with a naive WAF and rate limiter",
	Long: `Serve a local HTTP target for drill rehearsals. The stub blocks requests
carrying known attack signatures with 403, throttles each client with a
token bucket returning 429, and accepts the drill's default login.

  wafdrill target --addr :8080 --limit 6 --window 1s`,
	Run: func(cmd *cobra.Command, args []string) {
		serveTarget(cmd, args)
	},
}

func init() {
	targetCmd.Flags().String("addr", ":8080", "Listen address")
	targetCmd.Flags().Int("limit", stubtarget.DefaultLimit, "Requests allowed per client per window")
	targetCmd.Flags().Duration("window", stubtarget.DefaultWindow, "Rate limit window")
}

// serveTarget runs the stub target until interrupted.
func serveTarget(cmd *cobra.Command, args []string) {
	addr, _ := cmd.Flags().GetString("addr")
	limit, _ := cmd.Flags().GetInt("limit")
	window, _ := cmd.Flags().GetDuration("window")

	cfg := stubtarget.DefaultConfig()
	cfg.Limit = limit
	cfg.Window = window

	target := stubtarget.New(cfg)

	server := &http.Server{
		Addr:         addr,
		Handler:      target,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("Stub target listening on %s (limit %d req / %s per client)\n", addr, limit, window)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "Error serving target: %v\n", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Error shutting down: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Stub target stopped")
	}
}
