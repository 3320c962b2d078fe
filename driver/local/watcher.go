package local

import (
	"context"
	"io/fs"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/gobeaver/unifs"
)

// Watch implements unifs.CanWatch using fsnotify. The directory and all of
// its subdirectories are watched; the token fires on the first event whose
// file name matches pattern. Watching stops when the token fires, when ctx is
// cancelled, when the token is stopped, or when the last registered callback
// is unregistered. A token nobody registers on keeps its watcher until ctx
// ends or Stop is called.
func (d *Directory) Watch(ctx context.Context, pattern string) (unifs.ChangeToken, error) {
	p, err := unifs.CompilePattern(pattern)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, unifs.NewPathError("watch", d.path, err)
	}

	err = filepath.WalkDir(d.path, func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return nil, translateError("watch", d.path, err)
	}

	token := unifs.NewCallbackChangeToken()
	go d.watchLoop(ctx, watcher, p, token)
	return token, nil
}

func (d *Directory) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, p *unifs.NamePattern, token *unifs.CallbackChangeToken) {
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-token.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			if p.Match(filepath.Base(event.Name)) {
				select {
				case <-token.Done():
					return
				default:
				}
				d.logger.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("change detected")
				token.SignalChange()
				return
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			d.logger.Warn().Err(err).Str("path", d.path).Msg("watch error")
		}
	}
}
