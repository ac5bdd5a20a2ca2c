package main

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watchSpecFile watches specpath's directory for writes to that file and
// sends a value on the returned channel whenever one is seen, so a spec
// edit reloads the network the same way a SIGHUP does. The fsnotify
// watcher watches the containing directory rather than the file itself
// so that editors which replace the file (write-rename) are still caught.
func watchSpecFile(specpath string) (<-chan struct{}, func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, wrap(ErrWatchSpec, err)
	}

	dir := filepath.Dir(specpath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, nil, wrap(ErrWatchSpec, err)
	}

	name := filepath.Base(specpath)
	trigger := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != name {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				select {
				case trigger <- struct{}{}:
				default:
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return trigger, func() { watcher.Close() }, nil
}
