// Command mcp-server serves the GDMT tools over MCP stdio. It needs no external services:
// results are cached in memory and feedback is kept in SQLite under GDMT_DATA_DIR.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gdmt-engine/internal/config"
	"github.com/gdmt-engine/internal/mcp"
	"github.com/gdmt-engine/internal/setup"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mcp-server",
		Short:         "GDMT recommendation tools over MCP stdio",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
	root.AddCommand(newSetupCmd())
	return root
}

func serve(parent context.Context) error {
	cfg := config.LoadLiteConfig()

	server, err := mcp.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer server.Close()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Run(ctx)
}

func newSetupCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register this server with a desktop MCP client",
	}
	cmd.PersistentFlags().StringVar(&configPath, "client-config", "", "client config file (default: per-OS claude_desktop_config.json)")

	var opts setup.Options
	register := &cobra.Command{
		Use:   "register",
		Short: "Add or update the gdmt-engine entry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.ConfigPath = configPath
			if opts.BinaryPath == "" {
				if exe, err := os.Executable(); err == nil {
					opts.BinaryPath = exe
				}
			}
			path, err := setup.Register(opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s in %s\nRestart the client to load it.\n", setup.ServerName, path)
			return nil
		},
	}
	register.Flags().StringVar(&opts.BinaryPath, "binary", "", "server binary (default: this executable)")
	register.Flags().StringVar(&opts.DataDir, "data-dir", "", "data directory passed as GDMT_DATA_DIR")

	unregister := &cobra.Command{
		Use:   "unregister",
		Short: "Remove the gdmt-engine entry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			removed, err := setup.Unregister(configPath)
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintln(cmd.OutOrStdout(), "Not registered.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Removed.")
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the registration and data directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := setup.GetStatus(configPath)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}

	cmd.AddCommand(register, unregister, status)
	return cmd
}
