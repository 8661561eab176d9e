package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dshills/reporecall/internal/config"
	"github.com/dshills/reporecall/internal/project"
	"github.com/dshills/reporecall/internal/storage"
)

// cli carries the global flags and output streams shared by every command
type cli struct {
	root       string
	configPath string
	verbose    bool
	jsonOut    bool
	level      slog.Level

	out    io.Writer
	errOut io.Writer
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut, level: slog.LevelWarn}

	cmd := &cobra.Command{
		Use:          "reporecall",
		Short:        "Repository indexing, code search and project memory",
		SilenceUsage: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	flags := cmd.PersistentFlags()
	flags.StringVar(&c.root, "root", ".", "project root directory")
	flags.StringVar(&c.configPath, "config", "", "config file (default <root>/.reporecall/config.toml)")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&c.jsonOut, "json", false, "print results as JSON")

	cmd.AddCommand(
		c.indexCmd(false),
		c.indexCmd(true),
		c.statsCmd(),
		c.searchCmd(),
		c.memoryCmd(),
		c.serveCmd(),
		c.versionCmd(),
	)
	return cmd
}

// logger writes to stderr; stdout is reserved for results and the MCP protocol
func (c *cli) logger() *slog.Logger {
	level := c.level
	if c.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(c.errOut, &slog.HandlerOptions{Level: level}))
}

// open loads configuration and wires the project
func (c *cli) open() (*project.Project, error) {
	var cfg *config.Config
	if c.configPath != "" {
		var err error
		if cfg, err = config.Load(c.configPath); err != nil {
			return nil, err
		}
	}
	return project.Open(c.root, cfg, c.logger())
}

// withProject opens the project for the duration of fn
func (c *cli) withProject(fn func(p *project.Project) error) error {
	p, err := c.open()
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()
	return fn(p)
}

func (c *cli) printJSON(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(c.out, "reporecall\n")
			fmt.Fprintf(c.out, "Version: %s\n", version)
			fmt.Fprintf(c.out, "Build Time: %s\n", buildTime)
			fmt.Fprintf(c.out, "Build Mode: %s\n", storage.BuildMode)
			fmt.Fprintf(c.out, "SQLite Driver: %s\n", storage.DriverName)
			fmt.Fprintf(c.out, "Vector Extension: %v\n", storage.VectorExtensionAvailable)
		},
	}
}
