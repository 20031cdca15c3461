package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fgeck/jmx-restart/internal/services/console"
	"github.com/fgeck/jmx-restart/internal/services/ssh"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var checkSSH bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  `Validate the configuration without restarting anything.`,
	RunE:  validateConfig,
}

func init() {
	validateCmd.Flags().BoolVar(&checkSSH, "check-ssh", false, "also verify the SSH relaunch connection")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			log.Error().Str("file", configFile).Msg("config file not found")
			return fmt.Errorf("config file not found: %s", configFile)
		}
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	trigger, err := console.BuildTriggerEndpoint(cfg.Restart)
	if err != nil {
		log.Error().Err(err).Msg("configuration validation failed")
		return err
	}
	inspect, err := console.BuildInspectEndpoint(cfg.Restart)
	if err != nil {
		log.Error().Err(err).Msg("configuration validation failed")
		return err
	}

	r := cfg.Restart

	fmt.Println("Configuration is valid!")
	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  Trigger URL: %s\n", trigger.URL)
	fmt.Printf("  Inspect URL: %s\n", inspect.URL)
	fmt.Printf("  Authentication: %v\n", trigger.Authorization != "")
	fmt.Printf("  Trigger policy: %s\n", r.TriggerPolicy)
	fmt.Println()
	fmt.Println("Timing:")
	fmt.Printf("  Restart timeout: %s\n", r.Timeout)
	fmt.Printf("  Poll interval: %s\n", r.PollInterval)
	fmt.Printf("  Max attempts: %d\n", r.MaxAttempts())
	fmt.Printf("  Attempt timeout: %s\n", r.AttemptTimeout)
	fmt.Printf("  Trigger timeout: %s\n", r.TriggerTimeout)
	if r.MaxAttempts() == 0 {
		fmt.Println("  Warning: timeout is shorter than the poll interval, the restart can never be confirmed")
	}
	fmt.Println()
	fmt.Println("Optional Features:")
	fmt.Printf("  Wake-on-LAN: %v\n", cfg.WOL != nil)
	fmt.Printf("  SSH Relaunch: %v\n", cfg.SSHRelaunch != nil)
	fmt.Printf("  Telegram: %v\n", cfg.Telegram != nil)

	if cfg.WOL != nil {
		fmt.Println()
		fmt.Println("WOL Configuration:")
		fmt.Printf("  MAC Address: %s\n", cfg.WOL.MACAddress)
		fmt.Printf("  Broadcast IP: %s\n", cfg.WOL.BroadcastIP)
		fmt.Printf("  Wake Timeout: %s\n", cfg.WOL.Timeout)
	}

	if cfg.SSHRelaunch != nil {
		fmt.Println()
		fmt.Println("SSH Relaunch Configuration:")
		fmt.Printf("  Host: %s\n", cfg.SSHRelaunch.Host)
		fmt.Printf("  Port: %d\n", cfg.SSHRelaunch.Port)
		fmt.Printf("  Username: %s\n", cfg.SSHRelaunch.Username)
		fmt.Printf("  Command: %s\n", cfg.SSHRelaunch.Command)
		fmt.Printf("  Delay: %s\n", cfg.SSHRelaunch.Delay)
	}

	if cfg.Telegram != nil {
		fmt.Println()
		fmt.Println("Telegram Configuration:")
		fmt.Printf("  Chat ID: %s\n", cfg.Telegram.ChatID)
		fmt.Printf("  Bot Token: (configured)\n")
	}

	if checkSSH && cfg.SSHRelaunch != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
		defer cancel()

		result, err := ssh.New(log.Logger).TestConnection(ctx, *cfg.SSHRelaunch)
		if err != nil {
			return err
		}
		if result.Error != nil {
			log.Error().Err(result.Error).Str("host", cfg.SSHRelaunch.Host).Msg("SSH connection test failed")
			return result.Error
		}
		fmt.Println()
		fmt.Println("SSH connection: OK")
	}

	return nil
}
