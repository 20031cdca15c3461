package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fgeck/jmx-restart/internal/services/runner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Restart the server and wait for it to come back",
	Long: `Execute the restart workflow:
1. Wake-on-LAN of the server host (if configured)
2. Invoke the exit operation on the JMX console
3. Start the server over SSH (if configured)
4. Poll the console until it answers or the timeout elapses
5. Send Telegram notification (if configured)`,
	RunE: runRestart,
}

func runRestart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log.Info().
		Str("config", configFile).
		Str("host", cfg.Restart.Host).
		Str("port", cfg.Restart.Port).
		Int("max_attempts", cfg.Restart.MaxAttempts()).
		Msg("configuration loaded")

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Warn().Str("signal", sig.String()).Msg("received signal, aborting wait")
			cancel()
		case <-ctx.Done():
		}
	}()

	runnerSvc := runner.New(log.Logger)
	if err := runnerSvc.Run(ctx, *cfg); err != nil {
		log.Error().Err(err).Msg("restart failed")
		return err
	}

	return nil
}
