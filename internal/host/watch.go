package host

import (
	"context"

	"github.com/conneroisu/stencil/internal/watcher"
)

// Watch re-runs the host on every batch of changes until ctx ends. After
// each run the watcher follows the new dependency list. Extra roots, such
// as the entry glob base, are watched recursively so new files are seen.
func (h *Host) Watch(ctx context.Context, w *watcher.FileWatcher, roots ...string) error {
	for _, root := range roots {
		if err := w.AddRecursive(root); err != nil {
			return err
		}
	}
	if err := w.WatchFiles(h.Dependencies()...); err != nil {
		return err
	}

	w.AddHandler(func(events []watcher.ChangeEvent) error {
		h.logger.Debug(ctx, "Changes detected", "count", len(events))
		result, err := h.Run(ctx, watcher.ModifiedFiles(events))
		if err != nil {
			return err
		}
		return w.WatchFiles(result.Dependencies...)
	})

	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return w.Stop()
}
