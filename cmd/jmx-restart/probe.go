package main

import (
	"context"

	"github.com/fgeck/jmx-restart/internal/services/restart"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check once whether the management console answers",
	Long:  `Send a single inspect request to the JMX console and report whether the server is up.`,
	RunE:  probeServer,
}

func probeServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	svc := restart.New(log.Logger)
	if err := svc.Probe(context.Background(), cfg.Restart); err != nil {
		log.Error().
			Err(err).
			Str("host", cfg.Restart.Host).
			Str("port", cfg.Restart.Port).
			Msg("server is not reachable")
		return err
	}

	log.Info().
		Str("host", cfg.Restart.Host).
		Str("port", cfg.Restart.Port).
		Msg("server is up")
	return nil
}
