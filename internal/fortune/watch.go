package fortune

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// WatchVocabulary reloads path into p whenever the file is written or recreated.
// A vocabulary that fails to load is logged and the previous rules stay active.
// It blocks until ctx is done.
func WatchVocabulary(ctx context.Context, path string, p *Parser, log zerolog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory: editors replace files by rename, which drops a
	// watch placed on the file itself.
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if err := ReloadVocabulary(path, p); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("vocabulary reload failed; keeping previous rules")
				continue
			}
			log.Info().Str("path", path).Msg("vocabulary reloaded")
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("vocabulary watcher error")
		}
	}
}

// ReloadVocabulary loads path and swaps it into p.
func ReloadVocabulary(path string, p *Parser) error {
	v, err := LoadVocabulary(path)
	if err != nil {
		return err
	}
	return p.Swap(v)
}
