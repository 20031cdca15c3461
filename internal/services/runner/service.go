// Package runner orchestrates the restart workflow.
package runner

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fgeck/jmx-restart/internal/models"
	"github.com/fgeck/jmx-restart/internal/services/console"
	"github.com/fgeck/jmx-restart/internal/services/restart"
	"github.com/fgeck/jmx-restart/internal/services/ssh"
	"github.com/fgeck/jmx-restart/internal/services/telegram"
	"github.com/fgeck/jmx-restart/internal/services/wol"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service defines the interface for the restart runner.
type Service interface {
	Run(ctx context.Context, cfg models.Config) error
}

// RestartFactory builds the restart service for one run. hook is nil when
// nothing has to happen between trigger and polling.
type RestartFactory func(hook restart.TriggerHook) restart.Service

// Impl implements the runner Service interface.
type Impl struct {
	newRestart  RestartFactory
	wolSvc      wol.Service
	sshSvc      ssh.Service
	telegramSvc telegram.Service
	logger      zerolog.Logger
}

// New creates a new runner service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		newRestart: func(hook restart.TriggerHook) restart.Service {
			svc := restart.New(logger)
			if hook != nil {
				svc.WithTriggerHook(hook)
			}
			return svc
		},
		wolSvc:      wol.New(logger),
		sshSvc:      ssh.New(logger),
		telegramSvc: telegram.New(logger),
		logger:      logger,
	}
}

// NewWithServices creates a new runner service with custom services (for testing).
func NewWithServices(
	logger zerolog.Logger,
	newRestart RestartFactory,
	wolSvc wol.Service,
	sshSvc ssh.Service,
	telegramSvc telegram.Service,
) *Impl {
	return &Impl{
		newRestart:  newRestart,
		wolSvc:      wolSvc,
		sshSvc:      sshSvc,
		telegramSvc: telegramSvc,
		logger:      logger,
	}
}

// Run executes the complete restart workflow and returns an error unless
// the restart was confirmed.
func (s *Impl) Run(ctx context.Context, cfg models.Config) error {
	startTime := time.Now()
	runID := uuid.NewString()
	logger := s.logger.With().Str("run_id", runID).Logger()

	var failedStep string
	var runErr error
	var outcome *models.RestartOutcome

	logger.Info().
		Str("host", cfg.Restart.Host).
		Str("port", cfg.Restart.Port).
		Dur("timeout", cfg.Restart.Timeout).
		Str("policy", string(cfg.Restart.TriggerPolicy)).
		Msg("starting restart run")

	defer func() {
		if cfg.Telegram != nil {
			s.sendNotification(ctx, logger, cfg, runID, startTime, outcome, failedStep, runErr)
		}
	}()

	// Step 1: Wake-on-LAN (if configured)
	if cfg.WOL != nil {
		failedStep = "wol"
		if err := s.runWOL(ctx, logger, cfg); err != nil {
			runErr = err
			return err
		}
	}

	// Step 2: Restart and wait for the console
	failedStep = "restart"
	var hook restart.TriggerHook
	if cfg.SSHRelaunch != nil {
		hook = &relaunchHook{sshSvc: s.sshSvc, cfg: *cfg.SSHRelaunch, logger: logger}
	}

	var err error
	outcome, err = s.newRestart(hook).Restart(ctx, cfg.Restart)
	if err != nil {
		runErr = err
		return fmt.Errorf("restart failed: %w", err)
	}
	if !outcome.Confirmed() {
		runErr = fmt.Errorf("%s: %w", outcome.Message(), outcome.Error)
		return runErr
	}

	failedStep = ""
	logDuration(logger, time.Since(startTime))
	logger.Info().
		Int("attempts", outcome.Attempts).
		Bool("trigger_accepted", outcome.TriggerAccepted).
		Msg(outcome.Message())

	return nil
}

func (s *Impl) runWOL(ctx context.Context, logger zerolog.Logger, cfg models.Config) error {
	target, err := console.BuildInspectEndpoint(cfg.Restart)
	if err != nil {
		return fmt.Errorf("WOL failed: %w", err)
	}

	result, err := s.wolSvc.Wake(ctx, *cfg.WOL, target)
	if err != nil {
		return fmt.Errorf("WOL failed: %w", err)
	}
	if result.Error != nil {
		return fmt.Errorf("WOL failed: %w", result.Error)
	}
	if !result.ConsoleUp {
		return fmt.Errorf("server host did not wake up")
	}

	logger.Info().
		Bool("packet_sent", result.PacketSent).
		Int("checks", result.Checks).
		Dur("wait_duration", result.WaitDuration).
		Msg("WOL completed")

	return nil
}

// relaunchHook starts the server over SSH once the trigger has been sent.
type relaunchHook struct {
	sshSvc ssh.Service
	cfg    models.SSHRelaunchConfig
	logger zerolog.Logger
}

func (h *relaunchHook) AfterTrigger(ctx context.Context) error {
	cfg := h.cfg
	if cfg.PrivateKey == nil && cfg.KeyPath != "" {
		key, err := os.ReadFile(cfg.KeyPath)
		if err != nil {
			return fmt.Errorf("failed to read SSH key: %w", err)
		}
		cfg.PrivateKey = key
	}

	result, err := h.sshSvc.Relaunch(ctx, cfg)
	if err != nil {
		return fmt.Errorf("SSH relaunch failed: %w", err)
	}
	if result.Error != nil {
		return fmt.Errorf("SSH relaunch failed: %w", result.Error)
	}

	h.logger.Info().
		Str("host", cfg.Host).
		Str("output", result.Output).
		Msg("relaunch command sent")

	return nil
}

func (s *Impl) sendNotification(
	ctx context.Context,
	logger zerolog.Logger,
	cfg models.Config,
	runID string,
	startTime time.Time,
	outcome *models.RestartOutcome,
	failedStep string,
	runErr error,
) {
	msg := models.TelegramMessage{
		Success:   runErr == nil,
		RunID:     runID,
		Host:      cfg.Restart.Host,
		Port:      cfg.Restart.Port,
		StartTime: startTime,
		Duration:  time.Since(startTime),
	}

	if outcome != nil {
		msg.Attempts = outcome.Attempts
		msg.MaxAttempts = outcome.MaxAttempts
	}

	if runErr != nil {
		msg.FailedStep = failedStep
		msg.ErrorMessage = runErr.Error()
	}

	// Notify even when the run was cancelled.
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	result, err := s.telegramSvc.SendNotification(notifyCtx, *cfg.Telegram, msg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to send Telegram notification")
		return
	}
	if result.Error != nil {
		logger.Error().Err(result.Error).Msg("failed to send Telegram notification")
		return
	}

	logger.Info().Msg("Telegram notification sent")
}

// logDuration reports how long the run took, in seconds under a minute
// and as MM:SS above.
func logDuration(logger zerolog.Logger, d time.Duration) {
	if d < time.Minute {
		logger.Info().Int("seconds", int(d.Seconds())).Msg("restart run completed")
		return
	}
	logger.Info().Str("elapsed", restart.FormatElapsed(d)).Msg("restart run completed")
}
