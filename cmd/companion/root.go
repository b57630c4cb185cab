package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"companion/internal/config"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// flagOverrides holds command-line values that take precedence over the
// config file and environment.
type flagOverrides struct {
	configPath        string
	url               string
	deviceID          string
	imei              string
	accountKey        string
	logLevel          string
	logFormat         string
	noPlayback        bool
	reconnectAttempts int
}

type commandContext struct {
	flags flagOverrides
	cfg   *config.Config
}

func (c *commandContext) ensureConfig() (config.Config, error) {
	if c.cfg != nil {
		return *c.cfg, nil
	}
	cfg, err := config.LoadFrom(c.flags.configPath)
	if err != nil {
		return config.Config{}, err
	}
	applyOverrides(&cfg, c.flags)
	c.cfg = &cfg
	return cfg, nil
}

func applyOverrides(cfg *config.Config, flags flagOverrides) {
	if v := strings.TrimSpace(flags.url); v != "" {
		cfg.Server.URL = v
	}
	if v := strings.TrimSpace(flags.imei); v != "" {
		cfg.Credentials.IMEI = v
	}
	if v := strings.TrimSpace(flags.accountKey); v != "" {
		cfg.Credentials.AccountKey = v
	}
	if v := strings.TrimSpace(flags.deviceID); v != "" {
		cfg.Server.DeviceID = v
	}
	if v := strings.TrimSpace(flags.logLevel); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(flags.logFormat); v != "" {
		cfg.Log.Format = strings.ToLower(v)
	}
	if flags.noPlayback {
		cfg.Audio.Playback = false
	}
	if flags.reconnectAttempts >= 0 {
		cfg.Reconnect.MaxAttempts = flags.reconnectAttempts
	}
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{flags: flagOverrides{reconnectAttempts: -1}}

	rootCmd := &cobra.Command{
		Use:           "companion",
		Short:         "Terminal companion for a remote device session",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.flags.configPath, "config", "c", "", "Configuration file path")
	flags.StringVar(&ctx.flags.url, "url", "", "Server websocket URL (ws, wss, http or https)")
	flags.StringVar(&ctx.flags.deviceID, "device-id", "", "Device identifier sent as the deviceId query parameter")
	flags.StringVar(&ctx.flags.imei, "imei", "", "Device IMEI used for logon")
	flags.StringVar(&ctx.flags.accountKey, "account-key", "", "Account key used for logon")
	flags.StringVar(&ctx.flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&ctx.flags.logFormat, "log-format", "", "Log format (auto, console, json)")

	rootCmd.AddCommand(newConnectCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the companion version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "companion %s\n", version)
			return err
		},
	}
}
