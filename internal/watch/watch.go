// Package watch invalidates a typelens supplier when Go sources change.
//
// It watches a directory tree with fsnotify and calls Close on the
// target every time a .go file is written, created, removed, or
// renamed. Close is idempotent on the supplier side, so bursts of
// events collapse into one rebuild on the next Get.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
)

// Closer is the invalidation target, typically a *typelens.Supplier.
type Closer interface {
	Close()
}

// Run watches root until ctx is done, closing target on every .go
// change. New directories are added to the watch as they appear.
func Run(ctx context.Context, root string, target Closer, logger *log.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()

	if err := addTree(w, root); err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-w.Events:
				if !ok {
					return nil
				}
				if ev.Op&fsnotify.Create != 0 {
					if info, err := os.Stat(ev.Name); err == nil && info.IsDir() && !skipDir(filepath.Base(ev.Name)) {
						if err := addTree(w, ev.Name); err != nil && logger != nil {
							logger.Printf("watch: add %s: %v", ev.Name, err)
						}
					}
				}
				if !strings.HasSuffix(ev.Name, ".go") {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if logger != nil {
					logger.Printf("watch: %s changed, invalidating environment", ev.Name)
				}
				target.Close()
			}
		}
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case err, ok := <-w.Errors:
				if !ok {
					return nil
				}
				return fmt.Errorf("watch: %w", err)
			}
		}
	})
	return g.Wait()
}

// addTree registers root and every non-skipped directory beneath it.
func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root && skipDir(name) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

func skipDir(name string) bool {
	return name == "vendor" || name == "testdata" ||
		strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}
