package images

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultBatchFloor is the minimum wall time of a batch, so progress
// feedback does not flash past.
const DefaultBatchFloor = 400 * time.Millisecond

// Progress reports batch advancement after each asset.
type Progress struct {
	Done  int
	Total int
	Name  string
	Err   error
}

// Failure records one rejected asset.
type Failure struct {
	Name string
	Err  error
}

// BatchResult is the outcome of a batch.
type BatchResult struct {
	Images   []*EmbeddedImage
	Failures []Failure
	Elapsed  time.Duration
}

// BatchOptions tunes Batch.
type BatchOptions struct {
	// Floor is the minimum elapsed time; zero disables pacing.
	Floor    time.Duration
	Progress func(Progress)
}

// Batch ingests assets one at a time in input order. A rejected asset is
// recorded and the batch continues. Cancellation is checked between assets;
// already ingested images are still returned alongside ctx's error.
func (r *Resolver) Batch(ctx context.Context, assets []Asset, opts BatchOptions) (*BatchResult, error) {
	start := time.Now()
	result := &BatchResult{}

	for i, asset := range assets {
		if err := ctx.Err(); err != nil {
			result.Elapsed = time.Since(start)
			return result, err
		}

		img, err := r.Ingest(ctx, asset)
		if err != nil {
			result.Failures = append(result.Failures, Failure{Name: asset.Name, Err: err})
			r.logger.Warn(ctx, err, "upload rejected", "asset", asset.Name)
		} else {
			result.Images = append(result.Images, img)
		}

		if opts.Progress != nil {
			opts.Progress(Progress{Done: i + 1, Total: len(assets), Name: asset.Name, Err: err})
		}
	}

	if remaining := opts.Floor - time.Since(start); remaining > 0 {
		timer := time.NewTimer(remaining)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	result.Elapsed = time.Since(start)
	return result, nil
}

// imageExtensions are the file types picked up from asset directories.
var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".webp": true, ".bmp": true, ".svg": true,
}

// IsImageFile reports whether path has an image extension.
func IsImageFile(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// AssetsFromDir reads every image file directly inside dir, sorted by name.
func AssetsFromDir(dir string) ([]Asset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read image directory: %w", err)
	}

	var assets []Asset
	for _, e := range entries {
		if e.IsDir() || !IsImageFile(e.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}
		assets = append(assets, Asset{Name: e.Name(), Data: data})
	}

	sort.Slice(assets, func(i, j int) bool { return assets[i].Name < assets[j].Name })
	return assets, nil
}

// AssetFromFile reads one image file, named by its base name.
func AssetFromFile(path string) (Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Asset{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Asset{Name: filepath.Base(path), Data: data}, nil
}
