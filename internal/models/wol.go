package models

import "time"

// WOLConfig holds Wake-on-LAN configuration for the server host.
type WOLConfig struct {
	MACAddress    string
	BroadcastIP   string
	Timeout       time.Duration // how long the console may take to appear after the packet
	PollInterval  time.Duration // pause between console checks, also bounds each check
	StabilizeWait time.Duration // grace period once the console answers
}

// WOLResult holds the result of a Wake-on-LAN operation.
type WOLResult struct {
	PacketSent   bool
	ConsoleUp    bool
	Checks       int // console requests sent while waiting
	WaitDuration time.Duration
	Error        error
}
