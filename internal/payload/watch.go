package payload

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultWatchDebounce = 250 * time.Millisecond

// Watcher reloads a payload file whenever it changes on disk. Each reload is delivered to
// OnChange, which hosts treat as a fragment-replaced signal.
type Watcher struct {
	Path     string
	Debounce time.Duration
	Logger   *zap.Logger
	OnChange func(*Payload, error)

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	doneCh  chan struct{}
}

// Start begins watching. It is non-blocking; the loop runs until ctx is done or Stop is
// called. The parent directory is watched so editors that replace the file are seen.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(w.Path)); err != nil {
		_ = fw.Close()
		return err
	}
	w.watcher = fw
	w.doneCh = make(chan struct{})
	go w.loop(ctx, fw, w.doneCh)
	return nil
}

// Stop closes the underlying watcher and waits for the loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	fw, done := w.watcher, w.doneCh
	w.watcher = nil
	w.mu.Unlock()
	if fw == nil {
		return nil
	}
	err := fw.Close()
	<-done
	return err
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)

	log := w.Logger
	if log == nil {
		log = zap.NewNop()
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = defaultWatchDebounce
	}
	target := filepath.Clean(w.Path)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			log.Warn("payload watch error", zap.String("path", w.Path), zap.Error(err))
		case <-fire:
			fire = nil
			p, err := LoadFile(w.Path)
			if err != nil {
				log.Warn("payload reload failed", zap.String("path", w.Path), zap.Error(err))
			} else {
				log.Debug("payload reloaded", zap.String("path", w.Path))
			}
			if w.OnChange != nil {
				w.OnChange(p, err)
			}
		}
	}
}
