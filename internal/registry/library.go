package registry

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"gemsmith/internal/logging"
)

// LoadTechniques reads accepted synthesized techniques from the library
// directory (one .go snippet per technique, filename is the operation name).
// A missing directory is not an error; the library starts empty.
func (r *Registry) LoadTechniques(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	loaded := make(map[string]Technique)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".go") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".go")
		source, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			logging.Get(logging.CategoryBoot).Warn("technique library: skipping %s: %v", entry.Name(), err)
			continue
		}
		loaded[name] = Technique{Name: name, Source: string(source)}
	}

	r.replaceTechniques(loaded)
	logging.Get(logging.CategoryBoot).Info("technique library: loaded %d techniques from %s", len(loaded), dir)
	return nil
}

// SaveTechnique persists an accepted synthesized technique to the library
// directory and registers it in memory.
func (r *Registry) SaveTechnique(dir string, t Technique) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path := filepath.Join(dir, t.Name+".go")
	if err := os.WriteFile(path, []byte(t.Source), 0644); err != nil {
		return err
	}
	r.RegisterTechnique(t)
	return nil
}

// Watch reloads the technique library whenever the directory changes.
// It blocks until the context is cancelled; callers run it on its own
// goroutine. Events are debounced only by the cheapness of a full reload.
func (r *Registry) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		return err
	}

	log := logging.Get(logging.CategoryBoot)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !strings.HasSuffix(event.Name, ".go") {
				continue
			}
			if err := r.LoadTechniques(dir); err != nil {
				log.Warn("technique library reload failed: %v", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("technique library watcher: %v", err)
		}
	}
}
