// Package manifest enumerates the files under a scan root and records the
// metadata every other index is built from.
package manifest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dshills/reporecall/internal/scope"
	"github.com/dshills/reporecall/pkg/types"
)

// Builder walks a scan root and produces file records
type Builder struct {
	root       *scope.Root
	classifier *scope.Classifier
	logger     *slog.Logger
}

// NewBuilder creates a manifest builder for a project root
func NewBuilder(root *scope.Root, classifier *scope.Classifier, logger *slog.Logger) *Builder {
	if classifier == nil {
		classifier = scope.NewClassifier(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{root: root, classifier: classifier, logger: logger}
}

// Build walks scanRoot, which must already be resolved inside the project
// root, and returns one record per surviving file in traversal order.
// Entries that cannot be inspected are skipped; only cancellation aborts.
func (b *Builder) Build(ctx context.Context, scanRoot string) ([]types.FileRecord, error) {
	var records []types.FileRecord
	skipped := 0

	err := filepath.WalkDir(scanRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			skipped++
			if d != nil && d.IsDir() && path != scanRoot {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != scanRoot && b.classifier.PruneDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		rec, ok := b.record(path, d)
		if !ok {
			skipped++
			return nil
		}
		if rec != nil {
			records = append(records, *rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.logger.Debug("manifest built", "root", scanRoot, "files", len(records), "skipped", skipped)
	return records, nil
}

// record classifies one file. A nil record with ok=true means the file was
// deliberately excluded; ok=false means it could not be inspected.
func (b *Builder) record(path string, d fs.DirEntry) (*types.FileRecord, bool) {
	if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
		return nil, true
	}

	// The walk never follows links, so only a symlinked file needs resolving
	resolved := path
	if d.Type()&fs.ModeSymlink != 0 {
		var err error
		resolved, err = b.root.Canonical(path)
		if errors.Is(err, types.ErrOutsideRoot) {
			return nil, true
		}
		if err != nil {
			return nil, false
		}
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, false
	}
	if !info.Mode().IsRegular() {
		return nil, true
	}
	if b.classifier.TooLarge(info.Size()) {
		return nil, true
	}

	rel, err := b.root.Rel(path)
	if err != nil {
		return nil, true
	}

	rec := &types.FileRecord{
		Path:     resolved,
		RelPath:  rel,
		Size:     info.Size(),
		ModTime:  info.ModTime().UTC(),
		IsText:   b.classifier.IsText(d.Name()),
		Language: scope.DetectLanguage(d.Name()),
	}
	if !rec.IsText {
		return rec, true
	}

	n, err := CountLines(resolved)
	if err != nil {
		return nil, false
	}
	rec.Lines = &n
	return rec, true
}
