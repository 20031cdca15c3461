package models

import "time"

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// TelegramMessage holds the data for a restart notification.
type TelegramMessage struct {
	Success   bool
	RunID     string
	Host      string
	Port      string
	StartTime time.Time
	Duration  time.Duration

	// Polling stats.
	Attempts    int
	MaxAttempts int

	// Error info (if failed).
	ErrorMessage string
	FailedStep   string
}

// TelegramResult holds the result of a Telegram notification.
type TelegramResult struct {
	MessageSent bool
	Error       error
}
