package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/taskwright/taskwright/internal/batchfile"
	"github.com/taskwright/taskwright/internal/debug"
	"github.com/taskwright/taskwright/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch <directory>",
	Short: "Watch a directory and apply batch files as they appear",
	Long: `Watches a directory for new batch files (.yaml, .yml, .json) and applies
each one as it lands. Processed files are renamed with a .done suffix so a
restart never re-applies them; failed batches get a .failed suffix instead.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runWatch(cmd.Context(), args[0]); err != nil {
			FatalError("%v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(parent context.Context, dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	// Pick up files that landed before the watcher started.
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var backlog []string
	for _, entry := range entries {
		if !entry.IsDir() && isBatchFile(entry.Name()) {
			backlog = append(backlog, filepath.Join(dir, entry.Name()))
		}
	}

	pending := make(chan string, 64)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(pending)
		for {
			select {
			case <-ctx.Done():
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if isBatchFile(event.Name) {
					pending <- event.Name
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				return fmt.Errorf("watcher: %w", err)
			}
		}
	})
	g.Go(func() error {
		for _, path := range backlog {
			processBatchFile(ctx, path)
		}
		for path := range pending {
			processBatchFile(ctx, path)
		}
		return nil
	})

	if !debug.IsQuiet() {
		fmt.Printf("watching %s (ctrl-c to stop)\n", dir)
	}
	return g.Wait()
}

func isBatchFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// processBatchFile applies a single dropped file. Errors are reported but do
// not stop the watch loop.
func processBatchFile(ctx context.Context, path string) {
	// Writers may still be flushing when the create event fires.
	time.Sleep(100 * time.Millisecond)

	req, explicit, err := batchfile.Load(path)
	if err != nil {
		reportWatchFailure(path, err)
		return
	}
	applyConfigDefaults(&req.Options, explicit)

	result, err := runBatch(ctx, req)
	if err != nil {
		reportWatchFailure(path, err)
		return
	}

	if !debug.IsQuiet() {
		fmt.Printf("== %s\n", filepath.Base(path))
		printResult(result)
	}

	suffix := ".done"
	if result.RolledBack || result.FailedCount > 0 {
		suffix = ".failed"
	}
	if err := os.Rename(path, path+suffix); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: renaming %s: %v\n", path, err)
	}
}

func reportWatchFailure(path string, err error) {
	fmt.Fprintf(os.Stderr, "%s %s: %v\n", ui.IconFail, filepath.Base(path), err)
	if renameErr := os.Rename(path, path+".failed"); renameErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: renaming %s: %v\n", path, renameErr)
	}
}
