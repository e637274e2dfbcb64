// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"github.com/freitascorp/mcpfn/pkg/audit"
	"github.com/freitascorp/mcpfn/pkg/config"
	"github.com/freitascorp/mcpfn/pkg/logger"
	"github.com/freitascorp/mcpfn/pkg/server"
	"github.com/freitascorp/mcpfn/pkg/session"
	"github.com/freitascorp/mcpfn/pkg/transport"
)

// ------------------------------------------------------------------
// Global flags
// ------------------------------------------------------------------

var (
	flagConfig string
	flagDebug  bool
	flagJSON   bool
)

// ------------------------------------------------------------------
// Root command
// ------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mcpfn",
		Short: "mcpfn - serverless MCP JSON-RPC engine",
		Long: `mcpfn answers Model Context Protocol requests over HTTP or AWS Lambda.

Every request is handled independently; conversational state lives in a
pluggable session store (memory, SQLite, PostgreSQL or Redis).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", os.Getenv(config.EnvPrefix+"CONFIG"), "Path to a YAML config file")
	root.PersistentFlags().BoolVarP(&flagDebug, "debug", "d", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output in JSON format")

	root.AddCommand(
		newServeCmd(),
		newLambdaCmd(),
		newToolsCmd(),
		newSessionsCmd(),
		newAuditCmd(),
		newVersionCmd(),
	)

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

// ------------------------------------------------------------------
// `mcpfn serve` - long-running HTTP server
// ------------------------------------------------------------------

func newServeCmd() *cobra.Command {
	var flagListen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP endpoint over HTTP",
		Long: `Serve POST/DELETE /mcp plus /healthz, /readyz and /metrics.

Expired sessions are purged on the configured cron schedule when the
store supports it.

Examples:
  mcpfn serve
  mcpfn serve --listen 127.0.0.1:9000
  MCPFN_SESSION_BACKEND=sqlite MCPFN_SESSION_SQLITE_PATH=./sessions.db mcpfn serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if flagListen != "" {
				cfg.Server.Listen = flagListen
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}

			a, err := newApp(cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sweeper, err := a.newSweeper()
			if err != nil {
				return err
			}
			if sweeper != nil {
				go func() {
					if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
						log.Error("session sweeper stopped", "error", err)
					}
				}()
			}

			srv := server.NewServer(server.Config{
				ListenAddr:   cfg.Server.Listen,
				MaxBodyBytes: a.dispatcher.MaxBodyBytes(),
			}, a.dispatcher, a.metrics, log)
			srv.RegisterCheck("tools", func() (bool, string) {
				n := a.registry.Len()
				return n > 0, fmt.Sprintf("%d registered", n)
			})
			if check := storeCheck(a.store, cfg.Session.Backend); check != nil {
				srv.RegisterCheck("session_store", check)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&flagListen, "listen", "", "Listen address (overrides server.listen)")
	return cmd
}

// ------------------------------------------------------------------
// `mcpfn lambda` - AWS Lambda runtime entry point
// ------------------------------------------------------------------

func newLambdaCmd() *cobra.Command {
	var flagEvent string

	cmd := &cobra.Command{
		Use:   "lambda",
		Short: "Run as an AWS Lambda function",
		Long: `Start the Lambda runtime loop. Use --event v1 behind an API Gateway REST
API and --event v2 behind an HTTP API or a function URL.

Logs default to JSON unless MCPFN_LOG_HANDLER is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if os.Getenv(config.EnvPrefix+"LOG_HANDLER") == "" {
				cfg.Log.Handler = logger.HandlerJSON
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}

			a, err := newApp(cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			log.Info("lambda runtime starting", "event", flagEvent, "session_backend", cfg.Session.Backend)
			switch strings.ToLower(flagEvent) {
			case "v1", "rest":
				lambda.Start(transport.LambdaV1(a.dispatcher))
			case "v2", "http", "url":
				lambda.Start(transport.LambdaV2(a.dispatcher))
			default:
				return fmt.Errorf("unknown --event %q (supported: v1, v2)", flagEvent)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagEvent, "event", "v2", "API Gateway payload version: v1 or v2")
	return cmd
}

// ------------------------------------------------------------------
// `mcpfn tools` - inspect the registry
// ------------------------------------------------------------------

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect registered tools",
	}
	cmd.AddCommand(newToolsListCmd())
	return cmd
}

func newToolsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "List registered tools and their input schemas",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// Listing never touches sessions.
			cfg.Session.Backend = "none"
			a, err := newApp(cfg, logger.Discard())
			if err != nil {
				return err
			}
			defer a.Close()

			infos := a.registry.List()
			out := cmd.OutOrStdout()
			if flagJSON {
				return writeJSON(out, infos)
			}

			fmt.Fprintf(out, "%-16s %s\n", "NAME", "DESCRIPTION")
			fmt.Fprintln(out, strings.Repeat("─", 60))
			for _, def := range infos {
				fmt.Fprintf(out, "%-16s %s\n", def.Name, def.Description)
			}
			return nil
		},
	}
}

// ------------------------------------------------------------------
// `mcpfn sessions` - session store maintenance
// ------------------------------------------------------------------

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Maintain the session store",
	}
	cmd.AddCommand(newSessionsPurgeCmd())
	return cmd
}

func newSessionsPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired sessions once",
		Long: `Delete expired session records from the configured store. Redis expires
keys natively and needs no purging.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			store, err := session.NewStore(cfg.StoreConfig(), log)
			if err != nil {
				return err
			}
			defer closeStore(store)

			p, ok := store.(session.Purger)
			if !ok {
				return fmt.Errorf("session backend %q does not support purging", cfg.Session.Backend)
			}
			sweeper, err := session.NewSweeper(p, cfg.Session.SweepSchedule, nil, log)
			if err != nil {
				return err
			}
			n, err := sweeper.SweepOnce(cmd.Context())
			if err != nil {
				return err
			}

			if flagJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]int{"purged": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d expired session(s).\n", n)
			return nil
		},
	}
}

// ------------------------------------------------------------------
// `mcpfn audit` - query the tool-call audit trail
// ------------------------------------------------------------------

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the audit log",
	}
	cmd.AddCommand(newAuditListCmd())
	return cmd
}

func newAuditListCmd() *cobra.Command {
	var (
		flagFile    string
		flagTool    string
		flagSession string
		flagSince   string
		flagLimit   int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List audit events",
		Aliases: []string{"ls", "query"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := flagFile
			if path == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				path = cfg.Audit.Path
			}
			if path == "" {
				return fmt.Errorf("no audit log configured: set audit.path or pass --file")
			}

			store, err := audit.NewFileStore(path)
			if err != nil {
				return err
			}

			opts := audit.QueryOptions{
				Tool:      flagTool,
				SessionID: flagSession,
				Limit:     flagLimit,
			}
			if flagSince != "" {
				dur, err := time.ParseDuration(flagSince)
				if err != nil {
					return fmt.Errorf("invalid --since duration: %w", err)
				}
				opts.Since = time.Now().Add(-dur)
			}

			events, err := store.Query(cmd.Context(), opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if flagJSON {
				return writeJSON(out, events)
			}
			if len(events) == 0 {
				fmt.Fprintln(out, "No audit events found.")
				return nil
			}

			fmt.Fprintf(out, "%-20s %-16s %-16s %-8s %s\n", "TIMESTAMP", "TYPE", "TOOL", "STATUS", "SESSION")
			fmt.Fprintln(out, strings.Repeat("─", 100))
			for _, e := range events {
				status := ""
				if e.Result != nil {
					status = e.Result.Status
				}
				fmt.Fprintf(out, "%-20s %-16s %-16s %-8s %s\n",
					e.Timestamp.Format("2006-01-02 15:04:05"),
					e.Type,
					e.Tool,
					status,
					e.SessionID,
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagFile, "file", "", "Audit log file (default: audit.path from config)")
	cmd.Flags().StringVar(&flagTool, "tool", "", "Filter by tool name")
	cmd.Flags().StringVar(&flagSession, "session", "", "Filter by session id")
	cmd.Flags().StringVar(&flagSince, "since", "", "Filter since duration (e.g., 2h, 24h)")
	cmd.Flags().IntVar(&flagLimit, "limit", 50, "Max events to show")

	return cmd
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
