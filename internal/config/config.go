// Package config declares the CLI surface parsed by kong.
package config

import "github.com/Alia5/HIDRA/internal/cmd"

// LogConfig groups the logging flags shared by all commands.
type LogConfig struct {
	Level   string `help:"Log level" enum:"trace,debug,info,warn,error" default:"info" env:"HIDRA_LOG_LEVEL"`
	File    string `help:"Also write logs to this file (the console keeps logging to stderr)" env:"HIDRA_LOG_FILE"`
	RawFile string `help:"Write raw USB report hex dumps to this file" env:"HIDRA_RAW_LOG_FILE"`
}

// CLI is the root command structure.
type CLI struct {
	ConfigPath string    `name:"config" help:"Path to configuration file" type:"path"`
	Log        LogConfig `embed:"" prefix:"log."`

	Start       cmd.Start         `cmd:"" help:"Run the gamepad driver"`
	Status      cmd.Status        `cmd:"" help:"Show the profile directory, stored profiles and USB device counts"`
	ListDevices cmd.ListDevices   `cmd:"" name:"list-devices" help:"List attached controllers"`
	Map         cmd.Map           `cmd:"" help:"Bind a controller button to a key code in a profile"`
	Profile     cmd.ProfileCmd    `cmd:"" help:"Manage mapping profiles"`
	Config      cmd.ConfigCommand `cmd:"" help:"Configuration file helpers"`
}
