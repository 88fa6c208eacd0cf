package server

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces bursts of database writes (SQLite touches the
// main file and its WAL sidecars per transaction) into one baseline
// reload.
const reloadDebounce = 2 * time.Second

// watchStorage reloads the baseline when another process writes to the
// database file, so a CLI-recorded baseline session shows up in the
// running daemon without a restart. The returned func stops the watcher.
func (s *Server) watchStorage(ctx context.Context) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory: SQLite replaces WAL files, and watching the
	// file directly breaks on inode swap.
	dbPath := s.cfg.Storage.Path
	if err := watcher.Add(filepath.Dir(dbPath)); err != nil {
		watcher.Close()
		return nil, err
	}

	log := s.log.WithComponent("storage-watch")
	go func() {
		var timer *time.Timer
		var timerC <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
					continue
				}
				if filepath.Base(ev.Name) != filepath.Base(dbPath) &&
					filepath.Base(ev.Name) != filepath.Base(dbPath)+"-wal" {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(reloadDebounce)
					timerC = timer.C
				} else {
					timer.Reset(reloadDebounce)
				}
			case <-timerC:
				timerC = nil
				timer = nil
				if err := s.holder.Reload(); err != nil {
					log.Error("baseline reload failed", "error", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("watch error", "error", err)
			}
		}
	}()

	return func() { watcher.Close() }, nil
}
