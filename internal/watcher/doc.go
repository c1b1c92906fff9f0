// Package watcher reports changes to a small set of individual files, such
// as the synonyms file and the project config.
//
// fsnotify is used when available. Each file's parent directory is watched,
// so editors that save by writing a temp file and renaming it are still
// seen. When fsnotify cannot be set up (network mounts, some containers)
// the watcher falls back to polling file metadata.
//
// Events are debounced, so a burst of writes produces one callback.
//
// Usage:
//
//	w, err := watcher.New(watcher.DefaultOptions(), "/etc/synexpand/synonyms.yaml")
//	if err != nil {
//	    return err
//	}
//	go w.Run(ctx, func(events []watcher.FileEvent) {
//	    cache.Invalidate()
//	})
package watcher
