package symbols

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/dshills/reporecall/internal/scope"
	"github.com/dshills/reporecall/pkg/types"
)

const (
	// DefaultCtagsTimeout bounds how long the tag stream is read
	DefaultCtagsTimeout = 120 * time.Second

	// DefaultCtagsWait bounds how long the process may linger after its
	// output closes
	DefaultCtagsWait = 5 * time.Second

	probeTimeout = 5 * time.Second
	maxTagLine   = 1 << 20
)

// Ctags runs Universal Ctags over the scan root and streams its JSON output
type Ctags struct {
	Path    string
	Timeout time.Duration
	Wait    time.Duration
	logger  *slog.Logger
}

// ctagsTag is one line of `--output-format=json`
type ctagsTag struct {
	Type     string `json:"_type"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	Language string `json:"language"`
	Line     int    `json:"line"`
	Kind     string `json:"kind"`
}

// NewCtags creates a ctags extractor. An empty path means "ctags" on PATH.
func NewCtags(path string, logger *slog.Logger) *Ctags {
	if path == "" {
		path = "ctags"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ctags{
		Path:    path,
		Timeout: DefaultCtagsTimeout,
		Wait:    DefaultCtagsWait,
		logger:  logger,
	}
}

// Name implements Extractor
func (c *Ctags) Name() string { return NameCtags }

// Available reports whether a JSON capable ctags can be executed
func (c *Ctags) Available(ctx context.Context) (string, bool) {
	bin, err := exec.LookPath(c.Path)
	if err != nil {
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, bin, "--version").Output()
	if err != nil {
		return "", false
	}
	// Only Universal Ctags supports --output-format=json
	if !bytes.Contains(out, []byte("Universal Ctags")) {
		return "", false
	}
	return bin, true
}

// Args returns the ctags command line for a scan root
func (c *Ctags) Args(scanRoot string) []string {
	args := []string{"-R", "--fields=+nKl", "--output-format=json", "-f", "-"}
	for _, dir := range scope.PrunedDirs() {
		args = append(args, "--exclude="+dir)
	}
	return append(args, scanRoot)
}

// Extract implements Extractor. Output is consumed as a stream. When the
// timeout expires the process is killed and the tags read so far are kept.
func (c *Ctags) Extract(ctx context.Context, req Request) ([]types.SymbolRecord, bool) {
	bin, ok := c.Available(ctx)
	if !ok {
		c.logger.Debug("ctags not available, symbol index left empty", "path", c.Path)
		return nil, false
	}

	cmd := exec.Command(bin, c.Args(req.ScanRoot)...)
	cmd.Dir = req.ScanRoot
	cmd.Stderr = io.Discard
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		c.logger.Warn("ctags pipe failed", "error", err)
		return nil, false
	}
	if err := cmd.Start(); err != nil {
		c.logger.Warn("ctags start failed", "error", err)
		return nil, false
	}

	lines := make(chan []byte, 256)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), maxTagLine)
		for scanner.Scan() {
			lines <- append([]byte(nil), scanner.Bytes()...)
		}
	}()

	files := textFiles(req.Files)
	var records []types.SymbolRecord
	malformed := 0

	deadline := time.NewTimer(c.Timeout)
	defer deadline.Stop()

	complete := false
read:
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				complete = true
				break read
			}
			rec, status := c.parseLine(line, req, files)
			switch status {
			case lineMalformed:
				malformed++
			case lineTag:
				records = append(records, rec)
			}
		case <-deadline.C:
			c.logger.Warn("ctags timed out, keeping partial symbols", "timeout", c.Timeout, "symbols", len(records))
			break read
		case <-ctx.Done():
			break read
		}
	}

	if !complete {
		_ = cmd.Process.Kill()
		go func() {
			for range lines {
			}
		}()
	}
	c.reap(cmd)

	if malformed > 0 {
		c.logger.Debug("skipped malformed ctags lines", "count", malformed)
	}
	return records, true
}

// reap waits a bounded time for the process to exit, killing it otherwise
func (c *Ctags) reap(cmd *exec.Cmd) {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(c.Wait)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		c.logger.Warn("ctags did not exit in time, killing", "wait", c.Wait)
		_ = cmd.Process.Kill()
	}
}

type lineStatus int

const (
	lineIgnored lineStatus = iota
	lineMalformed
	lineTag
)

// parseLine normalizes one output line. Pseudo tags and tags for files
// outside the manifest are ignored.
func (c *Ctags) parseLine(line []byte, req Request, files map[string]*types.FileRecord) (types.SymbolRecord, lineStatus) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return types.SymbolRecord{}, lineIgnored
	}

	var tag ctagsTag
	if err := json.Unmarshal(line, &tag); err != nil {
		return types.SymbolRecord{}, lineMalformed
	}
	if tag.Type != "tag" {
		return types.SymbolRecord{}, lineIgnored
	}
	rec := types.SymbolRecord{
		Path: tag.Path,
		Name: tag.Name,
		Kind: NormalizeKind(tag.Kind),
		Line: tag.Line,
	}
	if rec.Validate() != nil {
		return types.SymbolRecord{}, lineMalformed
	}

	path := tag.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(req.ScanRoot, path)
	}
	rel, err := req.Root.Rel(filepath.Clean(path))
	if err != nil {
		return types.SymbolRecord{}, lineIgnored
	}
	file, ok := files[rel]
	if !ok {
		return types.SymbolRecord{}, lineIgnored
	}

	rec.Path = file.Path
	rec.RelPath = file.RelPath
	rec.Language = file.Language
	if rec.Language == "" {
		rec.Language = strings.ToLower(tag.Language)
	}
	return rec, lineTag
}
