package cmd

import (
	"context"
	"path/filepath"

	"github.com/conneroisu/folio/internal/pipeline"
	"github.com/conneroisu/folio/internal/watcher"
)

// liveDocument keeps a session in sync with the document, its variable
// files and its image directories.
type liveDocument struct {
	flags   *documentFlags
	prep    *prepared
	session *pipeline.Session
	watcher *watcher.FileWatcher

	docPath string
}

func startLive(ctx context.Context, flags *documentFlags, p *prepared) (*liveDocument, error) {
	session, err := pipeline.NewSession(p.pipeline,
		pipeline.WithDebounce(p.cfg.Pipeline.Debounce),
		pipeline.WithResolver(p.resolver),
		pipeline.WithBatchFloor(0),
		pipeline.WithSessionLogger(p.logger))
	if err != nil {
		return nil, err
	}

	live := &liveDocument{
		flags:   flags,
		prep:    p,
		session: session,
	}
	if err := live.uploadAll(ctx); err != nil {
		session.Close()
		return nil, err
	}
	if _, err := session.Load(ctx, p.text, p.vars); err != nil {
		session.Close()
		return nil, err
	}

	if err := live.watch(ctx); err != nil {
		session.Close()
		return nil, err
	}
	return live, nil
}

func (l *liveDocument) watch(ctx context.Context) error {
	fw, err := watcher.NewFileWatcher(l.prep.cfg.Pipeline.Debounce, l.prep.logger)
	if err != nil {
		return err
	}

	if l.prep.docPath != "-" {
		if l.docPath, err = filepath.Abs(l.prep.docPath); err != nil {
			fw.Stop()
			return err
		}
		if err := fw.WatchDocument(l.docPath); err != nil {
			fw.Stop()
			return err
		}
	}
	if err := fw.WatchVariables(l.flags.varsFiles...); err != nil {
		fw.Stop()
		return err
	}
	if err := fw.WatchImages(l.prep.imageDirs...); err != nil {
		fw.Stop()
		return err
	}

	fw.OnChange(func(b watcher.Batch) error {
		return l.handle(ctx, b)
	})
	if err := fw.Start(ctx); err != nil {
		fw.Stop()
		return err
	}
	l.watcher = fw
	return nil
}

func (l *liveDocument) handle(ctx context.Context, b watcher.Batch) error {
	if b.Images {
		l.prep.logger.Info(ctx, "images changed, re-embedding")
		if err := l.session.ResetImages(); err != nil {
			return err
		}
		if err := l.uploadAll(ctx); err != nil {
			return err
		}
	}

	if b.Variables {
		vars, err := l.flags.buildVariables()
		if err != nil {
			// Keep the last good bindings until the file parses again.
			l.prep.logger.Warn(ctx, err, "variables file did not load")
		} else {
			text := l.session.Text()
			if b.Document {
				if text, err = readDocumentFile(l.docPath); err != nil {
					return err
				}
			}
			_, err = l.session.Load(ctx, text, vars)
			return err
		}
	}

	if b.Document {
		text, err := readDocumentFile(l.docPath)
		if err != nil {
			return err
		}
		l.prep.logger.Debug(ctx, "document changed", "path", l.docPath)
		l.session.Update(text)
	}
	return nil
}

func (l *liveDocument) uploadAll(ctx context.Context) error {
	assets, err := collectAssets(l.prep.cfg, l.prep.imageDirs)
	if err != nil {
		return err
	}
	if len(assets) == 0 {
		return nil
	}
	result, err := l.session.Upload(ctx, assets, nil)
	if err != nil {
		return err
	}
	l.prep.failures = result.Failures
	return nil
}

func (l *liveDocument) Close() {
	if l.watcher != nil {
		l.watcher.Stop()
	}
	l.session.Close()
}
