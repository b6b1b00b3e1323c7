// SPDX-License-Identifier: MIT

package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	oplog "github.com/ManuGH/opgate/internal/log"
)

// File reports an operation as active while a marker file exists on disk.
// A watcher on the marker's parent directory drives change notifications;
// subscribers are only notified when the observed state actually flips.
type File struct {
	path    string
	watcher *fsnotify.Watcher
	logger  zerolog.Logger

	mu     sync.Mutex
	last   bool
	subs   map[int]func(bool)
	nextID int

	done chan struct{}
}

// NewFile creates a marker-file source and starts watching the marker's
// parent directory. The directory must exist; the marker itself may not.
func NewFile(path string) (*File, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	f := &File{
		path:    path,
		watcher: watcher,
		logger:  oplog.WithComponent("file-source"),
		subs:    make(map[int]func(bool)),
		done:    make(chan struct{}),
	}
	f.last = f.exists()

	go f.watchLoop()
	return f, nil
}

func (f *File) exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

func (f *File) Active() bool {
	return f.exists()
}

func (f *File) Subscribe(fn func(active bool)) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	return &fileSub{source: f, id: id}, nil
}

// Close stops the watcher goroutine. Pending callbacks finish first.
func (f *File) Close() error {
	select {
	case <-f.done:
		return nil
	default:
	}
	close(f.done)
	return f.watcher.Close()
}

func (f *File) watchLoop() {
	for {
		select {
		case <-f.done:
			return

		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if event.Name != f.path {
				continue
			}
			f.recheck()

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.logger.Error().
				Err(err).
				Str("path", f.path).
				Str("event", "source.watcher_error").
				Msg("marker watcher error")
		}
	}
}

// recheck re-reads the marker state and notifies subscribers on a flip.
func (f *File) recheck() {
	now := f.exists()

	f.mu.Lock()
	if now == f.last {
		f.mu.Unlock()
		return
	}
	f.last = now
	fns := make([]func(bool), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	f.logger.Debug().
		Str("path", f.path).
		Bool("active", now).
		Msg("marker state changed")

	for _, fn := range fns {
		fn(now)
	}
}

type fileSub struct {
	source *File
	id     int
	once   sync.Once
}

func (s *fileSub) Unsubscribe() {
	s.once.Do(func() {
		s.source.mu.Lock()
		delete(s.source.subs, s.id)
		s.source.mu.Unlock()
	})
}

var _ Source = (*File)(nil)
