package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/modoterra/catlog/internal/buildinfo"
	"github.com/modoterra/catlog/pkg/config"
	"github.com/modoterra/catlog/pkg/core"
	"github.com/modoterra/catlog/pkg/dispatch"
	"github.com/modoterra/catlog/pkg/transport/uds"
)

// --- Version ---

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "version",
		Short:             "Print version information",
		Args:              cobra.NoArgs,
		ValidArgsFunction: cobra.NoFileCompletions,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "catlog %s (%s) built %s\n",
				buildinfo.Version, buildinfo.Commit, buildinfo.Date)
		},
	}
}

// --- Watch ---

func newWatchCmd(opts *options) *cobra.Command {
	var socketPath string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print detections published by a running catlog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if socketPath == "" {
				cfg, err := loadConfig(opts)
				if err != nil {
					return err
				}
				socketPath = cfg.Socket
			}
			if socketPath == "" {
				return errors.New("no socket configured (use --socket)")
			}
			return watch(cmd, socketPath)
		},
	}
	cmd.Flags().StringVar(&socketPath, "socket", "", "socket of the running catlog")
	return cmd
}

func watch(cmd *cobra.Command, socketPath string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	client, err := uds.Dial(socketPath)
	if err != nil {
		return fmt.Errorf("cannot connect to catlog at %s: %w", socketPath, err)
	}
	defer client.Close()

	renderer := lipgloss.NewRenderer(out)
	codeStyle := renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	dimStyle := renderer.NewStyle().Faint(true)

	client.OnEvent(func(msg uds.Message) {
		if msg.Method != uds.EventStatusDetected {
			return
		}
		var d core.Detection
		if err := msg.UnmarshalData(&d); err != nil {
			return
		}
		ts := time.UnixMilli(d.TsUnixMs).Format(time.TimeOnly)
		fmt.Fprintf(out, "%s %s %s\n", dimStyle.Render(ts), codeStyle.Render(d.Code.String()), d.Line)
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	resp, err := client.Request(pingCtx, uds.MethodPing, nil)
	if err != nil {
		return err
	}
	var pong uds.PingResponse
	if err := resp.UnmarshalData(&pong); err != nil {
		return err
	}
	fmt.Fprintf(out, "watching %s\n", pong.SourceID)

	select {
	case <-ctx.Done():
	case <-client.Done():
	}

	statsCtx, cancelStats := context.WithTimeout(context.Background(), time.Second)
	defer cancelStats()
	if resp, err := client.Request(statsCtx, uds.MethodStats, nil); err == nil {
		var stats dispatch.Stats
		if resp.UnmarshalData(&stats) == nil {
			fmt.Fprintf(out, "%d lines, %d detections\n", stats.Lines, stats.Detections)
		}
	}
	return nil
}

// --- Config ---

func newConfigCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage catlog.yaml",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [file]",
		Short: "Write a catlog.yaml with the default settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path()
			if len(args) > 0 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			cfg := config.Default()
			if err := config.Save(&cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	validateCmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a catlog.yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.configPath
			if len(args) > 0 {
				path = args[0]
			}
			if path == "" {
				path = config.Find()
			}
			if path == "" {
				return errors.New("no config file found")
			}

			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			errs := config.Validate(cfg)
			if len(errs) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%s mode)\n", path, cfg.Mode())
				return nil
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d error(s)\n", path, len(errs))
			for _, e := range errs {
				fmt.Fprintf(cmd.ErrOrStderr(), "  • %s\n", e)
			}
			return fmt.Errorf("%s is invalid", path)
		},
	}

	cmd.AddCommand(initCmd)
	cmd.AddCommand(validateCmd)
	return cmd
}
