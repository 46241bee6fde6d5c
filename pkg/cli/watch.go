package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/RazmikMkrtchyan/raml2html/pkg/console"
)

// watchedSuffixes are the file types that can feed a rendered document: the
// document itself, YAML fragments, JSON schemas and examples, and markdown
// included for documentation sections.
var watchedSuffixes = []string{".raml", ".yaml", ".yml", ".json", ".md"}

// WatchAndRender renders opts.Input once, then re-renders whenever a relevant
// file under the document's directory changes. It returns when the context is
// canceled or an interrupt signal arrives.
func WatchAndRender(ctx context.Context, opts RenderOptions) error {
	if opts.Output == "" {
		return fmt.Errorf("watch mode requires --output; stdout would be rewritten on every change")
	}
	if _, err := os.Stat(opts.Input); err != nil {
		return fmt.Errorf("cannot watch %s: %w", opts.Input, err)
	}

	// Set up file system watcher
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	dirs, err := watchDirs(opts)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}

	fmt.Printf("Watching for file changes to %s...\n", opts.Input)
	if opts.Verbose {
		fmt.Println("Press Ctrl+C to stop watching.")
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Debouncing setup
	const debounceDelay = 300 * time.Millisecond
	var debounceTimer *time.Timer

	// Initial render. Failures are reported but do not stop the watch.
	renderOnce(ctx, opts)

	// Main watch loop
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher channel closed")
			}

			if !watchedFile(event.Name) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			if opts.Verbose {
				fmt.Printf("Detected change: %s (%s)\n", event.Name, event.Op.String())
			}

			// Any change to a watched file can affect the one document we
			// render, so the debounced action is always a full re-render.
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDelay, func() {
				renderOnce(ctx, opts)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			if opts.Verbose {
				fmt.Println(console.FormatWarningMessage(fmt.Sprintf("Watcher error: %v", err)))
			}

		case <-sigChan:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return ctx.Err()
		}
	}
}

// renderOnce runs a single render pass and keeps the watch alive on failure.
func renderOnce(ctx context.Context, opts RenderOptions) {
	if err := RenderDocument(ctx, opts); err != nil {
		if !errors.Is(err, ErrAlreadyReported) {
			fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
		}
		fmt.Println(console.FormatWarningMessage("Render failed, watching for further changes"))
	}
}

// watchDirs lists the directories to watch: the input document's directory
// tree plus the directory of every extension or overlay file. fsnotify
// watches are not recursive, so subdirectories are added individually.
func watchDirs(opts RenderOptions) ([]string, error) {
	seen := make(map[string]struct{})
	var dirs []string
	add := func(dir string) {
		if _, ok := seen[dir]; !ok {
			seen[dir] = struct{}{}
			dirs = append(dirs, dir)
		}
	}

	root := filepath.Dir(opts.Input)
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != root && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			add(path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	for _, extra := range opts.ExtensionsAndOverlays {
		add(filepath.Dir(extra))
	}
	return dirs, nil
}

func watchedFile(name string) bool {
	for _, suffix := range watchedSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
