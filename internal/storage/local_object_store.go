package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LocalObjectStore is a filesystem-backed ObjectStore for local development
// and deterministic tests. Every Put writes to a temp file in the same
// directory, fsyncs it, then renames it into place, so a crash never
// leaves a partially-written object visible to readers.
type LocalObjectStore struct {
	baseDir string
}

// sidecarExt is appended to an object's filename to store its metadata map
// alongside the body, since the local filesystem has no native concept of
// object metadata the way S3 does.
const sidecarExt = ".meta.json"

// NewLocalObjectStore roots all keys under baseDir, creating it if absent.
func NewLocalObjectStore(baseDir string) (*LocalObjectStore, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create object store directory %s: %w", baseDir, err)
	}
	return &LocalObjectStore{baseDir: baseDir}, nil
}

func (s *LocalObjectStore) path(key string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(key))
}

func (s *LocalObjectStore) Put(_ context.Context, key string, body []byte, metadata map[string]string) error {
	target := s.path(key)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s for key %s: %w", dir, key, err)
	}

	if err := atomicWrite(target, body); err != nil {
		return fmt.Errorf("failed to write object %s: %w", key, err)
	}

	if len(metadata) > 0 {
		metaBytes, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for %s: %w", key, err)
		}
		if err := atomicWrite(target+sidecarExt, metaBytes); err != nil {
			return fmt.Errorf("failed to write metadata sidecar for %s: %w", key, err)
		}
	}

	return nil
}

func (s *LocalObjectStore) Get(_ context.Context, key string) ([]byte, map[string]string, error) {
	target := s.path(key)
	body, err := os.ReadFile(target) // #nosec G304 -- key is an application-controlled object-store path, not direct user input
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, notFound("object", key)
		}
		return nil, nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}

	metadata, err := s.readMetadata(target)
	if err != nil {
		return nil, nil, err
	}

	return body, metadata, nil
}

func (s *LocalObjectStore) Head(_ context.Context, key string) (map[string]string, error) {
	target := s.path(key)
	if _, err := os.Stat(target); err != nil {
		if os.IsNotExist(err) {
			return nil, notFound("object", key)
		}
		return nil, fmt.Errorf("failed to stat object %s: %w", key, err)
	}
	return s.readMetadata(target)
}

func (s *LocalObjectStore) readMetadata(target string) (map[string]string, error) {
	metaBytes, err := os.ReadFile(target + sidecarExt) // #nosec G304 -- target is an application-controlled path derived from an object-store key
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read metadata sidecar for %s: %w", target, err)
	}
	var metadata map[string]string
	if err := json.Unmarshal(metaBytes, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata sidecar for %s: %w", target, err)
	}
	return metadata, nil
}

// atomicWrite writes data to a temp file beside path, fsyncs it, and
// renames it into place.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "obj-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file %s: %w", tmpPath, err)
	}
	_ = tmp.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file %s to %s: %w", tmpPath, path, err)
	}
	return nil
}
