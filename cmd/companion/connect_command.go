package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"companion/internal/bootstrap"
	"companion/internal/config"
	"companion/internal/logging"
	"companion/internal/ports"
)

func newConnectCommand(ctx *commandContext) *cobra.Command {
	var verbose bool
	var printTranscript bool

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect to the device server and open an interactive prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Server.URL == "" {
				return errors.New("server url is required (--url, COMPANION_SERVER_URL or [server] url)")
			}

			logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Out: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := newConsole(cmd.OutOrStdout(), verbose)
			return runConnect(runCtx, cfg, out, cmd.InOrStdin(), printTranscript, logger)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print diagnostic log lines as they happen")
	cmd.Flags().BoolVar(&printTranscript, "print-transcript", false, "Print the transcript as a table on exit")
	cmd.Flags().BoolVar(&ctx.flags.noPlayback, "no-playback", false, "Do not play inbound audio")
	cmd.Flags().IntVar(&ctx.flags.reconnectAttempts, "reconnect-attempts", -1, "Reconnect attempts after an unexpected disconnect (0 disables)")

	return cmd
}

func runConnect(ctx context.Context, cfg config.Config, out *console, in io.Reader, printTranscript bool, logger zerolog.Logger) error {
	services := bootstrap.Build(cfg, out, out, logger)
	defer func() {
		if err := services.Close(); err != nil {
			logger.Warn().Err(err).Msg("shutdown incomplete")
		}
	}()

	logger.Info().Str("config", cfg.Path).Msg("starting companion session")
	if err := services.Session.Connect(ctx, services.Target, services.Creds); err != nil {
		if cfg.Reconnect.MaxAttempts == 0 {
			return fmt.Errorf("connect: %w", err)
		}
		out.printf("initial connect failed, retrying: %v\n", err)
	}

	followCtx, cancelFollow := context.WithCancel(ctx)
	followDone := make(chan struct{})
	go func() {
		defer close(followDone)
		followRegistrations(followCtx, services, out, logger)
	}()
	defer func() {
		cancelFollow()
		<-followDone
	}()

	out.println(`Type /help for commands.`)
	if err := newPrompt(services.Session, out).run(ctx, in); err != nil {
		return err
	}

	if printTranscript {
		out.println(renderTranscript(services.Session.Transcript()))
	}
	return nil
}

// followRegistrations reconnects with freshly issued credentials. The
// device ID from the register acknowledgement doubles as the logon IMEI.
func followRegistrations(ctx context.Context, services bootstrap.Services, out *console, logger zerolog.Logger) {
	target := services.Target
	for {
		select {
		case <-ctx.Done():
			return
		case reg := <-out.registrations():
			target.DeviceID = reg.deviceID
			creds := ports.Credentials{IMEI: reg.deviceID, AccountKey: reg.accountKey}
			if err := services.Session.Connect(ctx, target, creds); err != nil {
				logger.Warn().Err(err).Msg("reconnect after registration failed")
			}
		}
	}
}
