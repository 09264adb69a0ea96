package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"zoolanding/quickstats/internal/utils"
)

// LocalStore keeps documents as files under a root directory, mirroring the
// bucket key layout ("<root>/<appName>/stats.json"). A quoted CRC32 content
// hash stands in for the S3 ETag. A filesystem watcher reports documents
// edited by other processes so subscribers still see those changes.
type LocalStore struct {
	root    string
	watcher *fsnotify.Watcher
	changes chan Change
}

// NewLocalStore creates the root directory if needed and starts watching it.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store root: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	s := &LocalStore{
		root:    root,
		watcher: watcher,
		changes: make(chan Change, 16),
	}

	// Watch the root plus any existing app directories.
	if err := watcher.Add(root); err != nil {
		watcher.Close()
		return nil, err
	}
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && path != root {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return nil, err
	}

	go s.watchFiles()
	return s, nil
}

// Close stops the filesystem watcher.
func (s *LocalStore) Close() {
	if s.watcher != nil {
		s.watcher.Close()
	}
}

// Bucket returns the root directory standing in for the bucket name.
func (s *LocalStore) Bucket() string { return s.root }

// Changes delivers documents modified outside this process.
func (s *LocalStore) Changes() <-chan Change { return s.changes }

// Head returns the content hash of a stored document.
func (s *LocalStore) Head(ctx context.Context, key string) (string, error) {
	data, err := os.ReadFile(s.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return utils.ContentETag(data), nil
}

// Get reads a stored document and its content hash.
func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	data, err := os.ReadFile(s.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", ErrNotFound
		}
		return nil, "", err
	}
	return data, utils.ContentETag(data), nil
}

// Put writes a document, creating the app directory on first write.
func (s *LocalStore) Put(ctx context.Context, key string, data []byte) (PutResult, error) {
	path := s.pathFor(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return PutResult{}, fmt.Errorf("failed to create app directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return PutResult{}, err
	}
	// New app directories need to be watched too; re-adding is harmless.
	if err := s.watcher.Add(dir); err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("failed to watch app directory")
	}
	return PutResult{ETag: utils.ContentETag(data)}, nil
}

// pathFor maps a storage key to a file path under the root.
func (s *LocalStore) pathFor(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// appNameFromPath recovers the application name from a watched file path.
func (s *LocalStore) appNameFromPath(path string) (string, error) {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return "", err
	}
	rel = strings.ReplaceAll(rel, "\\", "/")
	dir, file := filepath.Split(rel)
	if file != "stats.json" {
		return "", fmt.Errorf("not a stats document: %s", rel)
	}
	return strings.Trim(dir, "/"), nil
}

// watchFiles forwards stats.json writes to the changes channel.
func (s *LocalStore) watchFiles() {
	defer close(s.changes)
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, "stats.json") || event.Op&fsnotify.Write != fsnotify.Write {
				continue
			}
			appName, err := s.appNameFromPath(event.Name)
			if err != nil || appName == "" {
				continue
			}
			data, err := os.ReadFile(event.Name)
			if err != nil {
				log.Error().Err(err).Str("file", event.Name).Msg("failed to read changed document")
				continue
			}
			log.Debug().Str("appName", appName).Str("file", event.Name).Msg("document changed on disk")
			select {
			case s.changes <- Change{AppName: appName, Data: data}:
			default:
				// A stalled consumer must not block the watch loop.
				log.Warn().Str("appName", appName).Msg("dropping change notification")
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("watcher error")
		}
	}
}
