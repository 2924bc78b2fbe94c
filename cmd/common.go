package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conneroisu/folio/internal/config"
	"github.com/conneroisu/folio/internal/images"
	"github.com/conneroisu/folio/internal/kvstore"
	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/pipeline"
	"github.com/conneroisu/folio/internal/renderer"
	"github.com/conneroisu/folio/internal/variables"
)

// documentFlags are shared by the commands that process one document.
type documentFlags struct {
	varsFiles []string
	vars      []string
	imageDirs []string
	format    string
}

func (f *documentFlags) register(cmd *cobra.Command, withFormat bool) {
	cmd.Flags().StringArrayVar(&f.varsFiles, "vars", nil, "YAML variables file (repeatable, later files win)")
	cmd.Flags().StringArrayVar(&f.vars, "var", nil, "variable override as name=value or name:type=value (repeatable)")
	cmd.Flags().StringArrayVar(&f.imageDirs, "images", nil, "directory of images to embed (repeatable)")
	if withFormat {
		cmd.Flags().StringVarP(&f.format, "format", "f", "", "output format: html, terminal or markdown")
	}
}

// reset restores the zero flag values; tests drive the run functions
// directly.
func (f *documentFlags) reset() {
	*f = documentFlags{}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) logging.Logger {
	return logging.NewLogger(cfg.Log.LoggerConfig())
}

func openStore(cfg *config.Config) (kvstore.Store, error) {
	store, err := kvstore.NewFileStore(cfg.Store.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return store, nil
}

func readDocument(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	return readDocumentFile(path)
}

func readDocumentFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	return string(data), nil
}

// buildVariables merges variable files in order, then the overrides.
func (f *documentFlags) buildVariables() (*variables.Set, error) {
	set := variables.NewSet()
	for _, path := range f.varsFiles {
		vars, err := variables.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for _, v := range vars {
			set.Put(v)
		}
	}
	for _, raw := range f.vars {
		v, err := variables.ParseAssignment(raw)
		if err != nil {
			return nil, err
		}
		if existing, ok := set.Get(v.Name); ok && v.Type == "" {
			v.Type = existing.Type
		}
		set.Put(v)
	}
	return set, nil
}

// allImageDirs combines the flag directories with the configured ones and the
// document's own directory.
func (f *documentFlags) allImageDirs(cfg *config.Config, docPath string) []string {
	dirs := append([]string{}, f.imageDirs...)
	dirs = append(dirs, cfg.Images.Dirs...)
	if len(dirs) == 0 && docPath != "-" {
		dirs = append(dirs, filepath.Dir(docPath))
	}
	return dirs
}

// storedAssets returns the images saved with "folio images add", or nothing
// when the store directory does not exist yet.
func storedAssets(cfg *config.Config) ([]images.Asset, error) {
	if _, err := os.Stat(cfg.Store.Dir); os.IsNotExist(err) {
		return nil, nil
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	keys, err := store.Keys(pipeline.ImagePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list stored images: %w", err)
	}
	assets := make([]images.Asset, 0, len(keys))
	for _, key := range keys {
		uri, err := kvstore.GetString(store, key)
		if err != nil {
			return nil, err
		}
		_, data, err := images.ParseDataURI(uri)
		if err != nil {
			return nil, fmt.Errorf("stored image %s: %w", key, err)
		}
		assets = append(assets, images.Asset{Name: strings.TrimPrefix(key, pipeline.ImagePrefix), Data: data})
	}
	return assets, nil
}

// collectAssets gathers the stored images followed by every image in dirs.
// Later assets replace earlier ones with the same name.
func collectAssets(cfg *config.Config, dirs []string) ([]images.Asset, error) {
	assets, err := storedAssets(cfg)
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		dirAssets, err := images.AssetsFromDir(dir)
		if err != nil {
			return nil, err
		}
		assets = append(assets, dirAssets...)
	}
	return assets, nil
}

func newRenderer(cfg *config.Config, override string) (renderer.Renderer, error) {
	name := cfg.Render.Format
	if override != "" {
		name = override
	}
	format, err := renderer.ParseFormat(name)
	if err != nil {
		return nil, err
	}
	return renderer.New(format, cfg.Render.RendererOptions())
}

// wrapOutput turns an HTML fragment into a standalone page; other formats
// pass through.
func wrapOutput(r renderer.Renderer, title, output string) string {
	if r.Format() != renderer.FormatHTML {
		return output
	}
	return renderer.Document(title, output)
}

func documentTitle(cfg *config.Config, docPath string) string {
	if cfg.Render.Title != "" {
		return cfg.Render.Title
	}
	if docPath == "-" {
		return "folio"
	}
	base := filepath.Base(docPath)
	return base[:len(base)-len(filepath.Ext(base))]
}

// writeOutput writes to path, or to cmd's stdout when path is empty.
func writeOutput(cmd *cobra.Command, path, content string) error {
	if path == "" {
		_, err := io.WriteString(cmd.OutOrStdout(), content)
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// prepared bundles everything a document command needs.
type prepared struct {
	cfg       *config.Config
	logger    logging.Logger
	docPath   string
	text      string
	vars      *variables.Set
	imageDirs []string
	index     *images.Index
	resolver  *images.Resolver
	failures  []images.Failure
	pipeline  *pipeline.Pipeline
	renderer  renderer.Renderer
}

func (f *documentFlags) prepare(cmd *cobra.Command, docPath string, withRenderer bool) (*prepared, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	text, err := readDocument(cmd, docPath)
	if err != nil {
		return nil, err
	}
	vars, err := f.buildVariables()
	if err != nil {
		return nil, err
	}

	p := &prepared{
		cfg:       cfg,
		logger:    logger,
		docPath:   docPath,
		text:      text,
		vars:      vars,
		imageDirs: f.allImageDirs(cfg, docPath),
		index:     images.NewIndex(),
		resolver:  images.NewResolver(cfg.Images.ResolverConfig(), logger),
	}

	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	if withRenderer {
		r, err := newRenderer(cfg, f.format)
		if err != nil {
			return nil, err
		}
		p.renderer = r
		opts = append(opts, pipeline.WithRenderer(r))
	}
	p.pipeline = pipeline.New(opts...)
	return p, nil
}

// ingest embeds the stored images and every image from the image
// directories into the index.
func (p *prepared) ingest(ctx context.Context) error {
	assets, err := collectAssets(p.cfg, p.imageDirs)
	if err != nil {
		return err
	}
	result, err := p.resolver.Batch(ctx, assets, images.BatchOptions{})
	if result != nil {
		for _, img := range result.Images {
			p.index.Add(img)
		}
		p.failures = result.Failures
	}
	return err
}

func (p *prepared) input() pipeline.Input {
	return pipeline.Input{Text: p.text, Variables: p.vars, Images: p.index}
}
