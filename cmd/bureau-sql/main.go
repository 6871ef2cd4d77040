// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/sqlrt/lib/config"
	"github.com/bureau-foundation/sqlrt/lib/process"
	"github.com/bureau-foundation/sqlrt/lib/sqlitepool"
	"github.com/bureau-foundation/sqlrt/lib/version"
	"github.com/bureau-foundation/sqlrt/lib/writebatch"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		process.Fatal(err)
	}
}

type options struct {
	configPath   string
	databasePath string
	write        bool
	params       string
	format       string
	batch        bool
	checkpoint   bool
	metrics      bool
	verbose      bool
	showVersion  bool
	help         bool
}

func (o *options) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&o.configPath, "config", "", "config file (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&o.databasePath, "database", "", "override database.path from the config file")
	flagSet.BoolVarP(&o.write, "write", "w", false, "run the statement on the writer connection")
	flagSet.StringVarP(&o.params, "params", "p", "", "statement parameters as a JSON array (comments allowed), or @file")
	flagSet.StringVarP(&o.format, "format", "f", formatAuto, "output format: auto, table, or json")
	flagSet.BoolVar(&o.batch, "batch", false, "read write statements from stdin, one per line, and commit them in batches")
	flagSet.BoolVar(&o.checkpoint, "checkpoint", false, "checkpoint and truncate the WAL before exiting")
	flagSet.BoolVar(&o.metrics, "metrics", false, "write runtime metrics to stderr before exiting")
	flagSet.BoolVarP(&o.verbose, "verbose", "v", false, "log at debug level")
	flagSet.BoolVar(&o.showVersion, "version", false, "print version information and exit")
	flagSet.BoolVarP(&o.help, "help", "h", false, "show help")
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var opts options
	flagSet := pflag.NewFlagSet("bureau-sql", pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	opts.addFlags(flagSet)
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printHelp(stderr, flagSet)
			return nil
		}
		return process.Usage("%v", err)
	}
	if opts.help {
		printHelp(stderr, flagSet)
		return nil
	}
	if opts.showVersion {
		return version.Print(stdout, "bureau-sql", engineVersion())
	}

	format, err := resolveFormat(opts.format, stdout)
	if err != nil {
		return process.Usage("%v", err)
	}

	positional := flagSet.Args()
	switch {
	case opts.batch && len(positional) > 0:
		return process.Usage("--batch reads statements from stdin; unexpected argument %q", positional[0])
	case opts.batch && opts.params != "":
		return process.Usage("--params cannot be combined with --batch")
	case !opts.batch && len(positional) != 1:
		return process.Usage("expected exactly one SQL statement, got %d arguments", len(positional))
	}

	params, err := loadParams(opts.params)
	if err != nil {
		return process.Usage("--params: %v", err)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger := newLogger(stderr, opts.verbose)

	var registry *prometheus.Registry
	if opts.metrics {
		registry = prometheus.NewRegistry()
		if err := sqlitepool.RegisterMetrics(registry); err != nil {
			return err
		}
		registry.MustRegister(writebatch.Collectors()...)
		defer writeMetrics(stderr, registry, logger)
	}

	poolConfig, err := cfg.Pool(logger)
	if err != nil {
		return err
	}
	db, err := sqlitepool.Open(poolConfig)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("closing database", "error", closeErr)
		}
	}()

	if err := registerFunctions(db.Functions()); err != nil {
		return err
	}

	if opts.batch {
		err = runBatch(ctx, db, cfg.Batch, stdin, stdout, logger)
	} else {
		err = runStatement(ctx, db, positional[0], params, opts.write, newFormatter(format, stdout))
	}
	if err != nil {
		return err
	}

	if opts.checkpoint {
		if err := db.Checkpoint(ctx); err != nil {
			return fmt.Errorf("checkpoint: %w", err)
		}
		logger.Info("wal checkpointed", "path", cfg.Database.Path)
	}
	return nil
}

func loadConfig(opts options) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if opts.databasePath != "" {
		cfg.Database.Path = opts.databasePath
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDatabaseDir(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runStatement runs sql on a reader, or on the writer inside an
// IMMEDIATE transaction, and writes its rows to output.
func runStatement(ctx context.Context, db *sqlitepool.Database, sql string, params []any, write bool, output formatter) error {
	body := func(conn *sqlitepool.Conn) error {
		columns, err := conn.ColumnNames(sql)
		if err != nil {
			return err
		}
		if err := output.Header(columns); err != nil {
			return err
		}
		return conn.QueryFunc(ctx, sql, params, func(row any) error {
			values, err := sqlitepool.Columns(row, len(columns))
			if err != nil {
				return err
			}
			return output.Row(values)
		})
	}

	var err error
	if write {
		err = db.Write(ctx, body)
	} else {
		err = db.Read(ctx, body)
	}
	if err != nil {
		return err
	}
	return output.Flush()
}

func newLogger(stderr io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	options := &slog.HandlerOptions{Level: level}
	if isTerminal(stderr) {
		return slog.New(slog.NewTextHandler(stderr, options))
	}
	return slog.New(slog.NewJSONHandler(stderr, options))
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `bureau-sql runs SQL against a Bureau SQLite database.

Usage:
  bureau-sql [flags] SQL
  bureau-sql [flags] --batch < statements.sql

Examples:
  # Read from a reader connection
  bureau-sql --config state.yaml "SELECT id, name FROM items WHERE id > ?" --params '[10]'

  # Store a structured value as an encoded blob
  bureau-sql --write "INSERT INTO items (name, data) VALUES (?, ?)" --params '["a", {"tags": ["x"]}]'

  # Commit many writes in coalesced transactions
  bureau-sql --batch < updates.sql

Flags:
`)
	fmt.Fprint(w, flagSet.FlagUsages())
}
