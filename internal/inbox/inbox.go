// Package inbox imports dream journal files dropped into a directory.
package inbox

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/starford/dreamland/internal/models"
)

// Importer turns journal file content into a dream. *worldservice.Service
// satisfies it.
type Importer interface {
	ImportJournal(ctx context.Context, path string, data []byte, modTime time.Time) (*models.Dream, bool, error)
}

// File describes one journal file in the inbox.
type File struct {
	Path    string // relative to the inbox root
	ModTime time.Time
	Size    int64
}

// Inbox is a directory of journal files.
type Inbox struct {
	root   string
	imp    Importer
	logger *slog.Logger
}

// New opens the inbox at root, creating the directory if needed.
func New(root string, imp Importer, logger *slog.Logger) (*Inbox, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("inbox: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("inbox: create root: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{root: abs, imp: imp, logger: logger}, nil
}

// Root returns the absolute inbox directory.
func (in *Inbox) Root() string { return in.root }

// IsJournal reports whether name looks like a journal file: .md or .txt,
// not hidden.
func IsJournal(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".md", ".txt":
		return true
	}
	return false
}

// List returns every journal file under the inbox, sorted by path.
func (in *Inbox) List() ([]File, error) {
	var files []File
	err := filepath.WalkDir(in.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != in.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsJournal(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(in.root, path)
		if err != nil {
			return err
		}
		files = append(files, File{Path: filepath.ToSlash(rel), ModTime: info.ModTime(), Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("inbox: list: %w", err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Sync imports every journal file not imported before and returns how
// many dreams were created. Files that fail are logged and skipped.
func (in *Inbox) Sync(ctx context.Context) (int, error) {
	files, err := in.List()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, f := range files {
		created, err := in.importFile(ctx, f.Path)
		if err != nil {
			in.logger.Warn("inbox: import failed", slog.String("path", f.Path), slog.String("error", err.Error()))
			continue
		}
		if created {
			n++
		}
	}
	return n, nil
}

func (in *Inbox) importFile(ctx context.Context, rel string) (bool, error) {
	abs := filepath.Join(in.root, filepath.FromSlash(rel))
	info, err := os.Stat(abs)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return false, err
	}
	d, created, err := in.imp.ImportJournal(ctx, rel, data, info.ModTime())
	if err != nil {
		return false, err
	}
	if created {
		in.logger.Info("inbox: dream imported", slog.String("path", rel), slog.Int64("dream_id", d.ID))
	}
	return created, nil
}
