package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/reporecall/internal/indexer"
	"github.com/dshills/reporecall/internal/project"
	"github.com/dshills/reporecall/internal/searcher"
	"github.com/dshills/reporecall/pkg/types"
)

// indexCmd builds "init" or, when reindex is set, "reindex"
func (c *cli) indexCmd(reindex bool) *cobra.Command {
	var (
		scopePath    string
		maxFileMB    int
		chunkLines   int
		chunkOverlap int
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Build the code indexes unless a build already exists",
		Args:  cobra.NoArgs,
	}
	if reindex {
		cmd.Use = "reindex"
		cmd.Short = "Rebuild every code index from scratch"
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		opts := indexer.Options{
			Scope:         scopePath,
			MaxFileSizeMB: maxFileMB,
			ChunkLines:    chunkLines,
		}
		if cmd.Flags().Changed("chunk-overlap") {
			opts.ChunkOverlap = &chunkOverlap
		}

		return c.withProject(func(p *project.Project) error {
			summary, err := p.Build(cmd.Context(), reindex, opts)
			if err != nil {
				return err
			}
			if c.jsonOut {
				return c.printJSON(summary)
			}
			fmt.Fprintln(c.out, summary.String())
			return nil
		})
	}

	flags := cmd.Flags()
	flags.StringVar(&scopePath, "scope", "", "limit the build to a subdirectory of the root")
	flags.IntVar(&maxFileMB, "max-file-size-mb", 0, "skip files larger than this (default from config)")
	flags.IntVar(&chunkLines, "chunk-lines", 0, "lines per chunk (default from config)")
	flags.IntVar(&chunkOverlap, "chunk-overlap", 0, "lines shared by consecutive chunks (default from config)")
	return cmd
}

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show counts and parameters of the last build",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withProject(func(p *project.Project) error {
				stats, err := p.Indexer.Stats()
				if errors.Is(err, types.ErrNotBuilt) {
					fmt.Fprintln(c.out, searcher.NotBuiltMessage)
					return nil
				}
				if err != nil {
					return err
				}
				if c.jsonOut {
					return c.printJSON(stats)
				}

				fmt.Fprintf(c.out, "Root:       %s\n", stats.Root)
				if stats.Scope != "" {
					fmt.Fprintf(c.out, "Scope:      %s\n", stats.Scope)
				}
				fmt.Fprintf(c.out, "Files:      %d\n", stats.Files)
				fmt.Fprintf(c.out, "Symbols:    %d (%s)\n", stats.Symbols, stats.SymbolExtractor)
				fmt.Fprintf(c.out, "Chunks:     %d (%d lines, %d overlap)\n", stats.Chunks, stats.ChunkLines, stats.ChunkOverlap)
				fmt.Fprintf(c.out, "Endpoints:  %d\n", stats.Endpoints)
				fmt.Fprintf(c.out, "Built:      %s\n", stats.BuiltAt.Format(time.RFC3339))
				fmt.Fprintf(c.out, "Memory vectors: %d\n", p.Vectors.Len(cmd.Context()))
				return nil
			})
		},
	}
}
