// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/EvidenceBrowser/pkg/logging"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/analysis"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/datatypes"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/handlers"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/tables"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	dataDir    string
	logLevel   string
	format     string

	// lookupEnv is os.LookupEnv outside tests.
	lookupEnv func(string) (string, bool)
}

// config loads the configuration file and environment, then applies the
// persistent flags that were set on cmd.
func (o *rootOptions) config(cmd *cobra.Command) (evidence.Config, error) {
	path, required := defaultConfigPath, false
	if cmd.Flags().Changed("config") {
		path, required = o.configPath, true
	}
	cfg, err := loadConfig(path, required, o.lookupEnv)
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir = o.dataDir
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

// analyzer loads the dataset once for a query command.
func (o *rootOptions) analyzer(cmd *cobra.Command) (*analysis.Analyzer, error) {
	cfg, err := o.config(cmd)
	if err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := logging.New(logging.Config{Level: level, Service: evidence.ServiceName, Output: cmd.ErrOrStderr()})
	defer logger.Close()

	ds, err := tables.LoadDataset(cmd.Context(), cfg.GenePath(), cfg.DiseasePath(),
		tables.Options{ReferenceCondition: cfg.ReferenceCondition})
	if err != nil {
		return nil, fmt.Errorf("failed to load datasets: %w", err)
	}
	logger.Debug("dataset loaded",
		"genes", ds.Genes.Len(),
		"diseases", ds.Diseases.Len(),
		"gene_file", cfg.GenePath(),
		"disease_file", cfg.DiseasePath())
	return analysis.NewAnalyzer(tables.StaticProvider{Dataset: ds}, nil), nil
}

// print writes table to the command output in the selected format.
func (o *rootOptions) print(cmd *cobra.Command, table datatypes.Table) error {
	format, err := resolveFormat(o.format, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	return writeTable(cmd.OutOrStdout(), table, format)
}

// newRootCmd builds the command tree reading the process environment.
func newRootCmd() *cobra.Command {
	return buildRootCmd(os.LookupEnv)
}

// buildRootCmd builds the command tree with lookupEnv as environment.
func buildRootCmd(lookupEnv func(string) (string, bool)) *cobra.Command {
	opts := &rootOptions{lookupEnv: lookupEnv}

	root := &cobra.Command{
		Use:   "evidence",
		Short: "Browse gene and disease evidences extracted from the literature",
		Long: `evidence serves the gene/disease evidence browser over HTTP and runs
the same lookups from the command line.

Query commands print aligned columns on a terminal and TSV otherwise,
so their output can be piped into other tools.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "YAML configuration file")
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "directory holding the dataset files")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	root.PersistentFlags().StringVar(&opts.format, "format", formatAuto, "output format: auto, table or tsv")

	root.AddCommand(
		newServeCmd(opts),
		newInfoCmd(opts),
		newDistinctCmd(opts),
		newEvidenceCmd(opts),
		newCorrelationCmd(opts),
		newRelatedCmd(opts),
	)
	return root
}

// =============================================================================
// serve
// =============================================================================

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		port      int
		watch     bool
		cacheDir  string
		ginMode   string
		rateLimit float64
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the evidence browser HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config(cmd)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("port") {
				cfg.Port = port
			}
			if flags.Changed("watch") {
				cfg.WatchDatasets = watch
			}
			if flags.Changed("cache-dir") {
				cfg.CacheDir = cacheDir
			}
			if flags.Changed("gin-mode") {
				cfg.GinMode = ginMode
			}
			if flags.Changed("rate-limit") {
				cfg.RateLimitRPS = rateLimit
			}

			svc, err := evidence.New(cfg)
			if err != nil {
				return err
			}
			return svc.Run()
		},
	}
	cmd.Flags().IntVar(&port, "port", 5000, "HTTP port")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the datasets when their files change")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "keep the export cache on disk in this directory")
	cmd.Flags().StringVar(&ginMode, "gin-mode", "", "gin mode: debug, release or test")
	cmd.Flags().Float64Var(&rateLimit, "rate-limit", 0, "requests per second on the API, 0 for no limit")
	return cmd
}

// =============================================================================
// info
// =============================================================================

func newInfoCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print dimensions, columns, head and tail of both tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.analyzer(cmd)
			if err != nil {
				return err
			}
			ds := a.Dataset()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Reference condition: %s\n", ds.Genes.ReferenceCondition())

			for _, t := range []struct {
				title string
				table interface {
					Dimensions() (int, int)
					Labels() []string
					Head() [][]string
					Tail() [][]string
				}
			}{
				{"Gene evidences", ds.Genes},
				{"Disease evidences", ds.Diseases},
			} {
				rows, cols := t.table.Dimensions()
				fmt.Fprintf(out, "\n%s: %d rows x %d columns\n", t.title, rows, cols)
				fmt.Fprintf(out, "Columns: %s\n", strings.Join(t.table.Labels(), ", "))

				fmt.Fprintln(out, "Head:")
				if err := opts.print(cmd, datatypes.Table{Labels: t.table.Labels(), Rows: t.table.Head()}); err != nil {
					return err
				}
				fmt.Fprintln(out, "Tail:")
				if err := opts.print(cmd, datatypes.Table{Labels: t.table.Labels(), Rows: t.table.Tail()}); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// =============================================================================
// distinct
// =============================================================================

func newDistinctCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "distinct",
		Short: "List the distinct genes or diseases",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "genes",
			Short: "Distinct genes with their ids",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := opts.analyzer(cmd)
				if err != nil {
					return err
				}
				genes := a.DistinctGenes(cmd.Context())
				return opts.print(cmd, datatypes.GenesTable(handlers.DistinctGenesName, genes))
			},
		},
		&cobra.Command{
			Use:   "diseases",
			Short: "Distinct diseases with their ids",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := opts.analyzer(cmd)
				if err != nil {
					return err
				}
				diseases := a.DistinctDiseases(cmd.Context())
				return opts.print(cmd, datatypes.DiseasesTable(handlers.DistinctDiseasesName, diseases))
			},
		},
	)
	return cmd
}

// =============================================================================
// evidence
// =============================================================================

func newEvidenceCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evidence",
		Short: "Sentences linking a gene or disease to the reference condition",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "gene <symbol-or-id>",
			Short: "Evidences of a gene, by symbol or numeric id",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := opts.analyzer(cmd)
				if err != nil {
					return err
				}
				rows := a.GeneEvidence(cmd.Context(), args[0])
				return opts.print(cmd, datatypes.EvidenceTable(evidenceTableName(args[0]), rows))
			},
		},
		&cobra.Command{
			Use:   "disease <name-or-id>",
			Short: "Evidences of a disease, by name or disease id",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := opts.analyzer(cmd)
				if err != nil {
					return err
				}
				rows := a.DiseaseEvidence(cmd.Context(), args[0])
				return opts.print(cmd, datatypes.EvidenceTable(evidenceTableName(args[0]), rows))
			},
		},
	)
	return cmd
}

func evidenceTableName(query string) string {
	return strings.TrimSpace(query) + "_evidences"
}

// =============================================================================
// correlation
// =============================================================================

func newCorrelationCmd(opts *rootOptions) *cobra.Command {
	var rows, minOccurrence int
	cmd := &cobra.Command{
		Use:   "correlation",
		Short: "Gene/disease pairs ranked by co-occurrence in evidence sentences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rows < 0 {
				return fmt.Errorf("--rows must not be negative, got %d", rows)
			}
			if minOccurrence < 0 {
				return fmt.Errorf("--min-occurrence must not be negative, got %d", minOccurrence)
			}
			a, err := opts.analyzer(cmd)
			if err != nil {
				return err
			}
			result := a.Correlations(cmd.Context(), rows, minOccurrence)
			return opts.print(cmd, datatypes.CorrelationsTable(handlers.CorrelationName, result))
		},
	}
	cmd.Flags().IntVar(&rows, "rows", analysis.DefaultCorrelationRows, "maximum pairs to print, 0 for all")
	cmd.Flags().IntVar(&minOccurrence, "min-occurrence", 0, "only pairs seen at least this many times")
	return cmd
}

// =============================================================================
// related
// =============================================================================

func newRelatedCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "related",
		Short: "Diseases related to a gene, or genes related to a disease",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "diseases <gene>",
			Short: "Diseases co-mentioned with a gene, by symbol or numeric id",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := opts.analyzer(cmd)
				if err != nil {
					return err
				}
				diseases, err := a.DiseasesRelatedToGene(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("diseases related to %q: %w", args[0], err)
				}
				return opts.print(cmd, datatypes.DiseasesTable("diseases_rel_to_"+args[0], diseases))
			},
		},
		&cobra.Command{
			Use:   "genes <disease>",
			Short: "Genes co-mentioned with a disease, by name or disease id",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := opts.analyzer(cmd)
				if err != nil {
					return err
				}
				genes, err := a.GenesRelatedToDisease(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("genes related to %q: %w", args[0], err)
				}
				return opts.print(cmd, datatypes.GenesTable("genes_rel_to_"+args[0], genes))
			},
		},
	)
	return cmd
}
