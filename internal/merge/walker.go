package merge

import (
	"context"
	"io/fs"
	"path/filepath"
)

// walk visits every entry under root, depth first, and hands each candidate
// file to schedule. Unreadable entries are logged and skipped; only context
// cancellation stops the walk early.
func walk(ctx context.Context, root string, filter candidateFilter, log *Logger, stats *Stats, schedule func(string)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			log.Warningf("Failed to walk %s: %v", path, err)
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && filter.shouldSkipDirectory(path) {
				log.Debugf("Skipping directory: %s", path)
				return filepath.SkipDir
			}
			return nil
		}

		if !filter.matchesExtension(path) || filter.isOutput(path) {
			return nil
		}
		if !isReadableKind(path, d) {
			log.Debugf("Skipping non-regular file: %s", path)
			return nil
		}
		if len(path) > filter.maxPathLen {
			stats.TooLong.Add(1)
			log.Warningf("Path longer than %d bytes, skipping: %s", filter.maxPathLen, path)
			return nil
		}

		stats.Scanned.Add(1)
		schedule(path)
		return nil
	})
}
