package curve

import (
	"path/filepath"

	"codeberg.org/mutker/nvidiamon/internal/errors"
	"codeberg.org/mutker/nvidiamon/internal/logger"
	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a profile file whenever it changes on disk and
// hands the validated result to a callback. A file that fails to load
// is logged and ignored, so the live profile set only ever moves from
// one valid state to another.
type Watcher struct {
	path     string
	onChange func(Profiles)
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// Watch begins watching the profile file at path. The callback runs
// on the watcher goroutine for every successful reload.
func Watch(path string, onChange func(Profiles)) (*Watcher, error) {
	errFactory := errors.New()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errFactory.Wrap(ErrWatchFailed, err)
	}

	// Watch the parent directory rather than the file itself: editors
	// and atomic writers replace the file, which silently drops a
	// watch placed directly on it.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()

		return nil, errFactory.Wrap(ErrWatchFailed, err)
	}

	w := &Watcher{
		path:     path,
		onChange: onChange,
		watcher:  fw,
		done:     make(chan struct{}),
	}

	go w.watch()

	return w, nil
}

// Close stops the watcher and waits for its goroutine to exit
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done

	return err
}

func (w *Watcher) watch() {
	defer close(w.done)

	for {
		select {
		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			switch evt.Op {
			case fsnotify.Write, fsnotify.Create, fsnotify.Rename:
			default:
				continue
			}

			// The whole directory is watched, so skip events for
			// unrelated files.
			if filepath.Base(evt.Name) != filepath.Base(w.path) {
				continue
			}

			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Debug().Err(err).Msg("Profile watcher error")
		}
	}
}

func (w *Watcher) reload() {
	profiles, err := LoadProfiles(w.path)
	if err != nil {
		logger.Warn().Err(err).Str("path", w.path).Msg("Ignoring invalid profile file")

		return
	}

	logger.Info().Str("path", w.path).Int("profiles", len(profiles)).Msg("Reloaded curve profiles")
	w.onChange(profiles)
}
