package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/reporecall/internal/project"
	"github.com/dshills/reporecall/pkg/types"
)

func (c *cli) memoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Record and retrieve project facts",
	}
	cmd.AddCommand(
		c.memoryRecordCmd(),
		c.memoryAddCmd(),
		c.memoryRetrieveCmd(),
		c.memoryListCmd(),
		c.memoryRebuildCmd(),
	)
	return cmd
}

func (c *cli) memoryRecordCmd() *cobra.Command {
	var input, output, sessionID string
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Extract facts from a completed interaction",
		Long:  "Extract facts from a completed interaction. Use --output - to read the output from stdin.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read output from stdin: %w", err)
				}
				output = string(data)
			}
			if strings.TrimSpace(output) == "" {
				return errors.New("--output is required")
			}

			return c.withProject(func(p *project.Project) error {
				before, err := p.Memory.List()
				if err != nil {
					return err
				}
				if err := p.Memory.RecordTurn(cmd.Context(), input, output, sessionID); err != nil {
					return err
				}
				after, err := p.Memory.List()
				if err != nil {
					return err
				}

				added := len(after) - len(before)
				if c.jsonOut {
					return c.printJSON(map[string]int{"added": added, "total": len(after)})
				}
				fmt.Fprintf(c.out, "Recorded %d new facts (%d total)\n", added, len(after))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "the request that started the interaction")
	cmd.Flags().StringVar(&output, "output", "", "the response to extract facts from")
	cmd.Flags().StringVar(&sessionID, "session", "", "session identifier stored with new facts")
	return cmd
}

func (c *cli) memoryAddCmd() *cobra.Command {
	var tags []string
	cmd := &cobra.Command{
		Use:   "add <content>",
		Short: "Store one explicit fact",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.Join(args, " ")
			return c.withProject(func(p *project.Project) error {
				item, err := p.Memory.Add(cmd.Context(), content, tags, types.SourceManual)
				if err != nil {
					return err
				}
				if c.jsonOut {
					return c.printJSON(item)
				}
				fmt.Fprintf(c.out, "%s  %s\n", item.ID, item.Content)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "tags for the fact (derived from the content when omitted)")
	return cmd
}

func (c *cli) memoryRetrieveCmd() *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "retrieve <query>",
		Short: "Rank stored facts for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if k < 1 || k > 100 {
				return fmt.Errorf("--top-k must be between 1 and 100, got %d", k)
			}
			query := strings.Join(args, " ")
			return c.withProject(func(p *project.Project) error {
				scored, err := p.Memory.RetrieveItems(cmd.Context(), query, k)
				if err != nil {
					return err
				}
				if c.jsonOut {
					return c.printJSON(scored)
				}
				if len(scored) == 0 {
					fmt.Fprintln(c.out, "No matching facts.")
					return nil
				}
				for _, sc := range scored {
					fmt.Fprintf(c.out, "%.3f  %s\n", sc.Score, sc.Item.Content)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&k, "top-k", "k", 5, "number of facts to return")
	return cmd
}

func (c *cli) memoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored facts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withProject(func(p *project.Project) error {
				items, err := p.Memory.List()
				if err != nil {
					return err
				}
				if c.jsonOut {
					if items == nil {
						items = []types.MemoryItem{}
					}
					return c.printJSON(items)
				}
				for _, item := range items {
					fmt.Fprintf(c.out, "%s  %.2f  [%s]  %s\n",
						item.ID, item.Importance, strings.Join(item.Tags, ","), item.Content)
				}
				fmt.Fprintf(c.out, "%d facts\n", len(items))
				return nil
			})
		},
	}
}

func (c *cli) memoryRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild-vectors",
		Short: "Re-embed every stored fact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withProject(func(p *project.Project) error {
				msg, err := p.Memory.RebuildVectorIndex(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(c.out, msg)
				return nil
			})
		},
	}
}
