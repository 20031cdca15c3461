// Package config provides configuration file parsing.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fgeck/jmx-restart/internal/models"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Defaults for the restart section.
const (
	DefaultHost             = "localhost"
	DefaultPort             = "8080"
	DefaultTimeoutSeconds   = 120
	DefaultPollInterval     = 5 * time.Second
	DefaultProgressInterval = 1 * time.Second
	DefaultAttemptTimeout   = 4 * time.Second
	DefaultTriggerTimeout   = 30 * time.Second
	DefaultRelaunchCommand  = "sudo systemctl start jboss"
)

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"host":     "restart.host",
	"port":     "restart.port",
	"user":     "restart.username",
	"password": "restart.password",
	"timeout":  "restart.timeout_seconds",
	"policy":   "restart.policy",
}

// envKeys maps config keys to environment variables.
var envKeys = map[string]string{
	"restart.host":            "JMX_RESTART_HOST",
	"restart.port":            "JMX_RESTART_PORT",
	"restart.username":        "JMX_RESTART_USERNAME",
	"restart.password":        "JMX_RESTART_PASSWORD",
	"restart.timeout_seconds": "JMX_RESTART_TIMEOUT_SECONDS",
	"restart.policy":          "JMX_RESTART_POLICY",
}

// Parser handles configuration file parsing.
type Parser struct {
	v *viper.Viper
}

// NewParser creates a new configuration parser.
func NewParser() *Parser {
	v := viper.New()
	v.SetConfigType("yaml")
	for key, env := range envKeys {
		_ = v.BindEnv(key, env)
	}
	return &Parser{v: v}
}

// BindFlags lets command-line flags override file and env values.
func (p *Parser) BindFlags(flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := p.v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	return nil
}

// Load builds the configuration from env and flags only.
func (p *Parser) Load() (*models.Config, error) {
	return p.parse()
}

// LoadFile loads configuration from a file path.
func (p *Parser) LoadFile(path string) (*models.Config, error) {
	p.v.SetConfigFile(path)

	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return p.parse()
}

// LoadReader loads configuration from a reader (useful for testing).
func (p *Parser) LoadReader(content string) (*models.Config, error) {
	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return p.parse()
}

//nolint:gocognit,gocyclo // parsing config requires checking many fields
func (p *Parser) parse() (*models.Config, error) {
	cfg := &models.Config{}

	timeoutSeconds := p.v.GetInt("restart.timeout_seconds")
	if timeoutSeconds == 0 {
		timeoutSeconds = DefaultTimeoutSeconds
	}
	if timeoutSeconds < 0 {
		return nil, fmt.Errorf("restart.timeout_seconds must be positive")
	}

	cfg.Restart = models.RestartSettings{
		Host:             p.v.GetString("restart.host"),
		Port:             p.v.GetString("restart.port"),
		Username:         p.expandEnv(p.v.GetString("restart.username")),
		Password:         p.expandEnv(p.v.GetString("restart.password")),
		Timeout:          time.Duration(timeoutSeconds) * time.Second,
		PollInterval:     p.v.GetDuration("restart.poll_interval"),
		ProgressInterval: p.v.GetDuration("restart.progress_interval"),
		AttemptTimeout:   p.v.GetDuration("restart.attempt_timeout"),
		TriggerTimeout:   p.v.GetDuration("restart.trigger_timeout"),
		TriggerPolicy:    models.TriggerPolicy(strings.ToLower(p.v.GetString("restart.policy"))),
		TriggerPath:      p.v.GetString("console.trigger_path"),
		InspectPath:      p.v.GetString("console.inspect_path"),
	}

	// Set defaults.
	if cfg.Restart.Host == "" {
		cfg.Restart.Host = DefaultHost
	}
	if cfg.Restart.Port == "" {
		cfg.Restart.Port = DefaultPort
	}
	if cfg.Restart.PollInterval == 0 {
		cfg.Restart.PollInterval = DefaultPollInterval
	}
	if cfg.Restart.ProgressInterval == 0 {
		cfg.Restart.ProgressInterval = DefaultProgressInterval
	}
	if cfg.Restart.AttemptTimeout == 0 {
		cfg.Restart.AttemptTimeout = DefaultAttemptTimeout
		if cfg.Restart.AttemptTimeout >= cfg.Restart.PollInterval {
			cfg.Restart.AttemptTimeout = cfg.Restart.PollInterval * 4 / 5
		}
	}
	if cfg.Restart.TriggerTimeout == 0 {
		cfg.Restart.TriggerTimeout = DefaultTriggerTimeout
	}
	if cfg.Restart.TriggerPolicy == "" {
		cfg.Restart.TriggerPolicy = models.TriggerPolicyLenient
	}
	if cfg.Restart.TriggerPath == "" {
		cfg.Restart.TriggerPath = models.DefaultTriggerPath
	}
	if cfg.Restart.InspectPath == "" {
		cfg.Restart.InspectPath = models.DefaultInspectPath
	}

	// Parse optional WOL config.
	if p.v.IsSet("wol") { //nolint:nestif // config parsing with defaults
		cfg.WOL = &models.WOLConfig{
			MACAddress:    p.v.GetString("wol.mac_address"),
			BroadcastIP:   p.v.GetString("wol.broadcast_ip"),
			Timeout:       p.v.GetDuration("wol.timeout"),
			PollInterval:  p.v.GetDuration("wol.poll_interval"),
			StabilizeWait: p.v.GetDuration("wol.stabilize_wait"),
		}

		if cfg.WOL.MACAddress == "" {
			return nil, fmt.Errorf("wol.mac_address is required when wol is configured")
		}

		if cfg.WOL.BroadcastIP == "" {
			cfg.WOL.BroadcastIP = "255.255.255.255"
		}
		if cfg.WOL.Timeout == 0 {
			cfg.WOL.Timeout = 5 * time.Minute
		}
		if cfg.WOL.PollInterval == 0 {
			cfg.WOL.PollInterval = 10 * time.Second
		}
	}

	// Parse optional SSH relaunch config.
	if p.v.IsSet("ssh_relaunch") { //nolint:nestif // config parsing with defaults
		cfg.SSHRelaunch = &models.SSHRelaunchConfig{
			Host:     p.v.GetString("ssh_relaunch.host"),
			Port:     p.v.GetInt("ssh_relaunch.port"),
			Username: p.v.GetString("ssh_relaunch.username"),
			KeyPath:  p.expandEnv(p.v.GetString("ssh_relaunch.key_path")),
			Command:  p.v.GetString("ssh_relaunch.command"),
			Delay:    p.v.GetDuration("ssh_relaunch.delay"),
		}

		if cfg.SSHRelaunch.Host == "" {
			cfg.SSHRelaunch.Host = cfg.Restart.Host
		}
		if cfg.SSHRelaunch.Port == 0 {
			cfg.SSHRelaunch.Port = 22
		}
		if cfg.SSHRelaunch.Username == "" {
			cfg.SSHRelaunch.Username = "root"
		}
		if cfg.SSHRelaunch.KeyPath == "" {
			return nil, fmt.Errorf("ssh_relaunch.key_path is required when ssh_relaunch is configured")
		}
		if cfg.SSHRelaunch.Command == "" {
			cfg.SSHRelaunch.Command = DefaultRelaunchCommand
		}
	}

	// Parse optional Telegram config.
	if p.v.IsSet("telegram") {
		cfg.Telegram = &models.TelegramConfig{
			BotToken: p.expandEnv(p.v.GetString("telegram.bot_token")),
			ChatID:   p.expandEnv(p.v.GetString("telegram.chat_id")),
		}

		if cfg.Telegram.BotToken == "" {
			return nil, fmt.Errorf("telegram.bot_token is required when telegram is configured")
		}
		if cfg.Telegram.ChatID == "" {
			return nil, fmt.Errorf("telegram.chat_id is required when telegram is configured")
		}
	}

	return cfg, nil
}

// expandEnv expands environment variables in the format ${VAR} or $VAR.
func (p *Parser) expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate performs validation on the loaded configuration.
func Validate(cfg *models.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	r := cfg.Restart

	host := strings.TrimSpace(r.Host)
	if host == "" {
		return fmt.Errorf("restart.host is required")
	}
	if strings.ContainsAny(host, "/?#@ ") || (strings.Contains(host, ":") && net.ParseIP(host) == nil) {
		return fmt.Errorf("restart.host must be a bare hostname or IP address, got %q", r.Host)
	}

	port, err := strconv.Atoi(r.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("restart.port must be a number between 1 and 65535, got %q", r.Port)
	}

	if r.Timeout <= 0 {
		return fmt.Errorf("restart.timeout_seconds must be positive")
	}

	if r.PollInterval <= 0 {
		return fmt.Errorf("restart.poll_interval must be positive")
	}

	if r.ProgressInterval <= 0 || r.PollInterval%r.ProgressInterval != 0 {
		return fmt.Errorf("restart.progress_interval must evenly divide restart.poll_interval")
	}

	if r.AttemptTimeout <= 0 || r.AttemptTimeout >= r.PollInterval {
		return fmt.Errorf("restart.attempt_timeout must be positive and shorter than restart.poll_interval")
	}

	if r.TriggerTimeout <= 0 {
		return fmt.Errorf("restart.trigger_timeout must be positive")
	}

	switch r.TriggerPolicy {
	case models.TriggerPolicyLenient, models.TriggerPolicyStrict:
	default:
		return fmt.Errorf("restart.policy must be one of: lenient, strict")
	}

	if cfg.WOL != nil && cfg.WOL.MACAddress == "" {
		return fmt.Errorf("wol.mac_address is required when wol is configured")
	}

	if cfg.SSHRelaunch != nil && cfg.SSHRelaunch.KeyPath == "" {
		return fmt.Errorf("ssh_relaunch.key_path is required when ssh_relaunch is configured")
	}

	return nil
}
