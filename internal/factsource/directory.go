package factsource

import (
	"context"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"pitalign/internal/files"
)

// LoadDirectory reads every feed file in dir into a MemorySource. Files are
// named after their feed; eventColumns gives each known feed's event column
// and files for unknown feeds are skipped. Files are parsed concurrently.
func LoadDirectory(ctx context.Context, dir string, eventColumns map[string]string, logger *slog.Logger) (*MemorySource, error) {
	if logger == nil {
		logger = slog.Default()
	}

	feedFiles, err := files.NewDiscovery("").FindFeedFiles(dir)
	if err != nil {
		return nil, err
	}

	source := NewMemorySource()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for feed, file := range feedFiles {
		eventColumn, ok := eventColumns[feed]
		if !ok {
			logger.WarnContext(ctx, "skipping file for unknown feed",
				slog.String("feed", feed),
				slog.String("path", file.Path))
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records, err := LoadFile(file.Path, eventColumn)
			if err != nil {
				return err
			}
			source.Add(feed, records...)
			logger.InfoContext(gctx, "loaded fact file",
				slog.String("feed", feed),
				slog.String("path", file.Path),
				slog.Int("records", len(records)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return source, nil
}
