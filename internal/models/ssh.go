package models

import "time"

// SSHRelaunchConfig holds the optional SSH start command run after the
// restart trigger, for servers that have no supervisor to relaunch them.
type SSHRelaunchConfig struct {
	Host       string
	Port       int
	Username   string
	PrivateKey []byte // loaded from file path
	KeyPath    string // path to key file
	Command    string
	Delay      time.Duration // wait after the trigger before running Command
}

// SSHResult holds the result of an SSH operation.
type SSHResult struct {
	CommandRun bool
	Output     string
	Error      error
}
