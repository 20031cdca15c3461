// Package wol wakes the application server host before a restart.
package wol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/fgeck/jmx-restart/internal/models"
	"github.com/fgeck/jmx-restart/internal/services/console"
	"github.com/mdlayher/wol"
	"github.com/rs/zerolog"
)

// ErrConsoleNotUp means the host was woken but its console never answered.
var ErrConsoleNotUp = errors.New("management console did not come up after wake-up")

// Service defines the interface for Wake-on-LAN operations.
type Service interface {
	// Wake sends the magic packet and, when target has a URL, waits until
	// the console behind it answers.
	Wake(ctx context.Context, cfg models.WOLConfig, target models.ManagementEndpoint) (*models.WOLResult, error)
}

// Client wraps the wol library for mocking.
type Client interface {
	Wake(broadcastIP string, mac net.HardwareAddr) error
}

// DefaultClient sends magic packets with mdlayher/wol.
type DefaultClient struct{}

// Wake sends a magic packet to the UDP discard port of the broadcast address.
func (c *DefaultClient) Wake(broadcastIP string, mac net.HardwareAddr) error {
	ip := net.ParseIP(broadcastIP)
	if ip == nil {
		return fmt.Errorf("invalid broadcast IP: %s", broadcastIP)
	}

	client, err := wol.NewClient()
	if err != nil {
		return fmt.Errorf("failed to create WOL client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if err := client.Wake(net.JoinHostPort(ip.String(), "9"), mac); err != nil {
		return fmt.Errorf("failed to send WOL packet: %w", err)
	}
	return nil
}

// Impl implements the WOL Service interface.
type Impl struct {
	packets    Client
	httpClient console.HTTPClient
	logger     zerolog.Logger
}

// New creates a new WOL service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		packets:    &DefaultClient{},
		httpClient: console.NewHTTPClient(),
		logger:     logger,
	}
}

// NewWithClients creates a new WOL service with custom clients (for testing).
func NewWithClients(logger zerolog.Logger, packets Client, httpClient console.HTTPClient) *Impl {
	if httpClient == nil {
		httpClient = console.NewHTTPClient()
	}
	return &Impl{
		packets:    packets,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Wake implements Service.
func (s *Impl) Wake(ctx context.Context, cfg models.WOLConfig, target models.ManagementEndpoint) (*models.WOLResult, error) {
	result := &models.WOLResult{}
	start := time.Now()

	mac, err := net.ParseMAC(cfg.MACAddress)
	if err != nil {
		result.Error = fmt.Errorf("invalid MAC address %q: %w", cfg.MACAddress, err)
		return result, nil
	}

	s.logger.Info().
		Str("mac", mac.String()).
		Str("broadcast", cfg.BroadcastIP).
		Msg("waking server host")

	if err := s.packets.Wake(cfg.BroadcastIP, mac); err != nil {
		result.Error = err
		return result, nil //nolint:nilerr // error is stored in result struct
	}
	result.PacketSent = true

	if target.URL == nil {
		result.ConsoleUp = true
		result.WaitDuration = time.Since(start)
		return result, nil
	}

	s.logger.Info().
		Str("url", target.URL.String()).
		Dur("timeout", cfg.Timeout).
		Msg("waiting for management console")

	result.Checks, err = s.awaitConsole(ctx, cfg, target)
	if err == nil && cfg.StabilizeWait > 0 {
		s.logger.Debug().Dur("wait", cfg.StabilizeWait).Msg("letting the server settle")
		err = sleep(ctx, cfg.StabilizeWait)
	}
	result.WaitDuration = time.Since(start)
	if err != nil {
		result.Error = err
		return result, nil //nolint:nilerr // error is stored in result struct
	}

	result.ConsoleUp = true
	s.logger.Info().
		Int("checks", result.Checks).
		Dur("duration", result.WaitDuration).
		Msg("server host is awake")

	return result, nil
}

// awaitConsole checks target until it answers or cfg.Timeout elapses and
// returns how many checks were sent. The host counts as awake on any HTTP
// response: a 401 or 503 from the console still proves the machine is up.
func (s *Impl) awaitConsole(ctx context.Context, cfg models.WOLConfig, target models.ManagementEndpoint) (int, error) {
	waitCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	checks := 0
	for {
		checks++
		err := s.check(waitCtx, cfg.PollInterval, target)
		if err == nil {
			return checks, nil
		}
		s.logger.Debug().Err(err).Int("check", checks).Msg("server host not awake yet")

		if err := sleep(waitCtx, cfg.PollInterval); err != nil {
			if ctx.Err() != nil {
				return checks, ctx.Err()
			}
			return checks, fmt.Errorf("%w: timeout waiting for management console at %s after %d check(s)",
				ErrConsoleNotUp, target.URL.Redacted(), checks)
		}
	}
}

func (s *Impl) check(ctx context.Context, limit time.Duration, target models.ManagementEndpoint) error {
	if limit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limit)
		defer cancel()
	}

	req, err := console.NewRequest(ctx, target)
	if err != nil {
		return err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()

	s.logger.Debug().Int("status", resp.StatusCode).Msg("management console answered")
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
