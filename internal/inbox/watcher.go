package inbox

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settle is how long a file must stay quiet before it is imported, so a
// file still being written is not imported half finished.
const settle = 300 * time.Millisecond

// Watch imports journal files as they are created or written until ctx is
// cancelled. Directories created at runtime are watched too. Removing or
// renaming a file never removes its dream.
func (in *Inbox) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, in.root); err != nil {
		return err
	}
	in.logger.Info("inbox: watching", slog.String("root", in.root))

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerCh <-chan time.Time
	touch := func(abs string) {
		rel, err := filepath.Rel(in.root, abs)
		if err != nil {
			return
		}
		pending[filepath.ToSlash(rel)] = struct{}{}
		if timer == nil {
			timer = time.NewTimer(settle)
			timerCh = timer.C
		} else {
			timer.Reset(settle)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			in.logger.Info("inbox: stopped")
			return nil

		case <-timerCh:
			for rel := range pending {
				if _, err := in.importFile(ctx, rel); err != nil {
					in.logger.Warn("inbox: import failed", slog.String("path", rel), slog.String("error", err.Error()))
				}
			}
			clear(pending)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addDirsRecursive(w, ev.Name); err != nil {
						in.logger.Warn("inbox: watch new dir failed", slog.String("path", ev.Name), slog.String("error", err.Error()))
					}
					_ = filepath.WalkDir(ev.Name, func(path string, d fs.DirEntry, err error) error {
						if err == nil && !d.IsDir() && IsJournal(path) {
							touch(path)
						}
						return nil
					})
					continue
				}
			}
			if IsJournal(ev.Name) {
				touch(ev.Name)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			in.logger.Error("inbox: watcher error", slog.String("error", err.Error()))
		}
	}
}

func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
