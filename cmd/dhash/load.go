package main

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/theflywheel/dhash"
	"github.com/theflywheel/dhash/concurrent"
	"github.com/theflywheel/dhash/config"
	"github.com/theflywheel/dhash/ingest"
	"github.com/theflywheel/dhash/logutil"
	"github.com/theflywheel/dhash/metrics"
)

type loadFlags struct {
	configPath  string
	gets        []string
	removes     []string
	print       bool
	dumpMetrics bool
}

func loadCommand() *cobra.Command {
	var f loadFlags
	cmd := &cobra.Command{
		Use:   "load <file>...",
		Short: "Load files, then run lookups and removals",
		Long: "Load one or more delimited files into a table keyed by the configured key field, " +
			"then run the requested lookups and removals in order and optionally print the table.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, args, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.configPath, "config", "c", "", "TOML configuration file")
	flags.StringArrayVar(&f.gets, "get", nil, "key to look up (repeatable)")
	flags.StringArrayVar(&f.removes, "remove", nil, "key to remove (repeatable)")
	flags.BoolVar(&f.print, "print", false, "print every stored pair")
	flags.BoolVar(&f.dumpMetrics, "metrics", false, "print table metrics in Prometheus text format")
	return cmd
}

func runLoad(cmd *cobra.Command, files []string, f loadFlags) error {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return err
		}
	}

	logger, err := logutil.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	tbl, err := concurrent.New[string, string](dhash.StringHasher{},
		cfg.Table.InitialCapacity, cfg.Table.MaxLoadFactor, cfg.Table.Options(logger)...)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	loader, err := ingest.NewLoader(cfg.Ingest.Options(logger))
	if err != nil {
		return fmt.Errorf("failed to create loader: %w", err)
	}

	rep, err := loader.LoadFiles(cmd.Context(), files, tbl)
	logger.Info("load finished",
		zap.Int("files", len(files)),
		zap.Int("records", rep.Records),
		zap.Int("inserted", rep.Inserted),
		zap.Int("malformed", rep.Malformed),
		zap.Int("blank-keys", rep.BlankKeys),
		zap.Int("rejected", rep.Rejected),
		zap.Int("entries", tbl.Len()))
	if err != nil {
		return fmt.Errorf("failed to load files: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, key := range f.gets {
		if v, ok := tbl.Get(key); ok {
			fmt.Fprintln(out, v)
		} else {
			fmt.Fprintln(out, "Key not found")
		}
	}
	for _, key := range f.removes {
		fmt.Fprintln(out, removeMessage(tbl, key))
	}
	if f.print {
		if s := tbl.String(); s != "" {
			fmt.Fprintln(out, s)
		}
	}
	if f.dumpMetrics {
		return writeMetrics(out, tbl)
	}
	return nil
}

func removeMessage(tbl *concurrent.Table[string, string], key string) string {
	removed, ok := tbl.Remove(key)
	if !ok {
		return "Key not found"
	}
	return fmt.Sprintf("Key-value pair with Key of %s was removed", removed)
}

func writeMetrics(w io.Writer, tbl metrics.StatsSource) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(metrics.NewCollector("dhash", tbl, nil)); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	return metrics.WriteText(w, reg)
}
