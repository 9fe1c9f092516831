package disk

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	apperrors "github.com/julianstephens/daybook/internal/errors"
	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/storage"
)

// startWatcher begins forwarding changes written by other processes to
// subscribers.
func (s *Store) startWatcher() error {
	s.watchOnce.Do(func() {
		s.watchErr = s.watch()
	})
	return s.watchErr
}

func (s *Store) watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	dirs, err := collectDirs(s.basePath)
	if err != nil {
		watcher.Close()
		return fmt.Errorf("enumerate directories: %w", err)
	}
	watched := make(map[string]struct{}, len(dirs))
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		watched[dir] = struct{}{}
	}

	go func() {
		defer close(s.done)
		defer watcher.Close()

		for {
			select {
			case <-s.stop:
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Debug("File watcher error", "error", err)
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if evt.Op&fsnotify.Create == fsnotify.Create {
					if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
						dir := filepath.Clean(evt.Name)
						if _, found := watched[dir]; !found && !s.isTemp(dir) {
							if err := watcher.Add(dir); err != nil {
								logger.Debug("Failed to watch directory", "dir", dir, "error", err)
							} else {
								watched[dir] = struct{}{}
							}
						}
						continue
					}
				}
				if collection, key, ok := s.documentForPath(evt.Name); ok {
					s.refresh(collection, key)
				}
			}
		}
	}()
	return nil
}

func (s *Store) isTemp(path string) bool {
	rel, err := filepath.Rel(s.basePath, path)
	return err == nil && (rel == tempDir || strings.HasPrefix(rel, tempDir+string(os.PathSeparator)))
}

// documentForPath maps a file under the base directory to its document.
func (s *Store) documentForPath(path string) (string, string, bool) {
	if !strings.HasSuffix(path, fileExt) || s.isTemp(path) {
		return "", "", false
	}
	rel, err := filepath.Rel(s.basePath, path)
	if err != nil {
		return "", "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		return "", "", false
	}
	key := strings.TrimSuffix(parts[len(parts)-1], fileExt)
	return strings.Join(parts[:len(parts)-1], "/"), key, true
}

func (s *Store) refresh(collection, key string) {
	if s.hub.Subscribers(collection, key) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read(collection, key)
	if err != nil && !apperrors.IsNotFound(err) {
		logger.Debug("Ignoring unreadable document change", "collection", collection, "key", key, "error", err)
		return
	}
	s.hub.Publish(storage.Change{Collection: collection, Key: key, Doc: doc})
}

// collectDirs walks base and returns all directories that should be watched.
func collectDirs(base string) ([]string, error) {
	dirs := []string{base}
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() || path == base {
			return nil
		}
		if d.Name() == tempDir {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})
	return dirs, err
}
