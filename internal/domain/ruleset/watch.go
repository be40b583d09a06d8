package ruleset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads path whenever it is written, created or renamed into place
// and hands the new registry to onChange. A failed reload goes to onError and
// the caller keeps its previous registry. Watch blocks until ctx is cancelled.
//
// The parent directory is watched so atomic saves (write a temp file, rename
// it over path) keep triggering reloads.
func Watch(ctx context.Context, path string, onChange func(*Registry), onError func(error)) error {
	path = filepath.Clean(path)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("watch rules file: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create rules watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch rules directory: %w", err)
	}

	report := func(err error) {
		if onError != nil {
			onError(err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// renamed away; the replacement arrives as a Create
			if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
				continue
			}

			reg, err := LoadFile(path)
			if err != nil {
				report(fmt.Errorf("reload %s: %w", path, err))
				continue
			}
			onChange(reg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			report(fmt.Errorf("rules watcher: %w", err))
		}
	}
}
