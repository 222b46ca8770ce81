package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// PublishDir uploads every regular file under dir through store, keyed by
// its slash-separated path relative to dir. Files for which skip returns
// true are left out. Files are published in lexical order and the first
// failure stops the upload.
func PublishDir(ctx context.Context, store Storage, dir string, skip func(rel string) bool) ([]string, error) {
	var urls []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if skip != nil && skip(key) {
			return nil
		}

		f, err := os.Open(p) // #nosec G304 - p comes from walking the output directory
		if err != nil {
			return fmt.Errorf("open %s: %w", key, err)
		}
		url, err := store.Publish(ctx, key, f)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("publish %s: %w", key, err)
		}

		urls = append(urls, url)
		return nil
	})
	if err != nil {
		return urls, err
	}
	return urls, nil
}
