package main

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watch calls rebuild whenever path is written or replaced, until ctx is
// done. The parent directory is watched, since editors often save by
// renaming a new file over the old one.
func watch(ctx context.Context, path string, rebuild func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	log.Infof("watching %s", abs)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			log.Debugf("%s: %s", ev.Op, ev.Name)
			rebuild()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
