package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher signals when one of a fixed set of files changes on disk. Signals
// are dropped rather than queued when the host is not keeping up; a reload
// after N writes looks the same as a reload after one.
type Watcher struct {
	log    *log.Logger
	fsw    *fsnotify.Watcher
	paths  map[string]bool
	change chan string
	remove chan string

	done      chan struct{}
	closeOnce sync.Once
}

func NewWatcher(logger *log.Logger, paths ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	w := &Watcher{
		log:    logger,
		fsw:    fsw,
		paths:  make(map[string]bool, len(paths)),
		change: make(chan string, 4),
		remove: make(chan string, 4),
		done:   make(chan struct{}),
	}
	for _, p := range paths {
		abs, err := filepath.Abs(filepath.Clean(p))
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		if _, err := os.Stat(abs); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", p, err)
		}
		if err := fsw.Add(abs); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", p, err)
		}
		w.paths[abs] = true
	}
	return w, nil
}

func (w *Watcher) Change() <-chan string { return w.change }
func (w *Watcher) Remove() <-chan string { return w.remove }

func (w *Watcher) Start() {
	go w.run()
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.paths[filepath.Clean(ev.Name)] {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				w.send(w.remove, ev.Name, "remove")
			case ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Chmod) != 0:
				w.send(w.change, ev.Name, "change")
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.log != nil {
				w.log.Printf("watcher error: %v", err)
			}
		}
	}
}

func (w *Watcher) send(ch chan string, path, kind string) {
	select {
	case ch <- path:
	default:
		if w.log != nil {
			w.log.Printf("watcher %s signal dropped for %s", kind, path)
		}
	}
}

func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
	})
	return err
}
