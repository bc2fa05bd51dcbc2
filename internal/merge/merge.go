package merge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Run merges every file under opts.RootDir whose extension matches
// opts.Extension into opts.OutputPath, writing each distinct content once.
//
// Traversal, hashing and writing overlap. Once the walk ends the hash pool
// drains its queue and exits; once every hash worker has joined the write
// pool drains the arena and exits; only then is the output closed.
//
// Errors wrapping ErrStartup mean nothing was merged. Per-file failures never
// surface as an error; they are logged and counted in the returned Snapshot.
func Run(ctx context.Context, opts Options) (Snapshot, error) {
	stats := &Stats{}

	opts.setDefaults()
	if err := opts.Validate(); err != nil {
		return stats.Snapshot(), fmt.Errorf("%w: %w", ErrStartup, err)
	}

	log := opts.Logger
	if log == nil {
		log = NopLogger()
		defer log.Close()
	}

	if info, err := os.Stat(opts.RootDir); err != nil {
		return stats.Snapshot(), fmt.Errorf("%w: %w", ErrStartup, err)
	} else if !info.IsDir() {
		return stats.Snapshot(), fmt.Errorf("%w: %s is not a directory", ErrStartup, opts.RootDir)
	}
	// WalkDir does not follow a symlinked root.
	root, err := filepath.EvalSymlinks(opts.RootDir)
	if err != nil {
		return stats.Snapshot(), fmt.Errorf("%w: resolving %s: %w", ErrStartup, opts.RootDir, err)
	}

	arena, err := allocArena(opts.Capacity, opts.MaxPathLen)
	if err != nil {
		log.Errorf("Cant initialize memory to hold file names: %v", err)
		return stats.Snapshot(), err
	}

	cache, err := NewHashCache(opts.Capacity)
	if err != nil {
		log.Errorf("Couldn't initialize enough memory for hash cache: %v", err)
		return stats.Snapshot(), err
	}

	out, err := os.OpenFile(opts.OutputPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		log.Errorf("Couldn't open %s for writing: %v", opts.OutputPath, err)
		return stats.Snapshot(), fmt.Errorf("%w: opening output: %w", ErrStartup, err)
	}

	state := newPipeline(arena, stats, log)

	writers, err := newWritePool(state, out, opts.WriteWorkers, opts.BufferSize, opts.UseMMap)
	if err != nil {
		out.Close()
		log.Errorf("Couldn't initialize enough memory for I/O: %v", err)
		return stats.Snapshot(), err
	}
	writers.onWritten = opts.OnWritten

	hashers := newHashPool(state, cache, opts.Algorithm)
	if err := hashers.Start(opts.HashWorkers); err != nil {
		out.Close()
		return stats.Snapshot(), fmt.Errorf("%w: %w", ErrStartup, err)
	}
	writers.Start()
	log.Infof("Started %d hash workers and %d write workers", opts.HashWorkers, opts.WriteWorkers)

	// Cancellation is a hard stop for both pools.
	stopWatch := context.AfterFunc(ctx, func() {
		hashers.halt()
		writers.halt()
	})
	defer stopWatch()

	start := time.Now()
	filter := newCandidateFilter(opts, out)
	walkErr := walk(ctx, root, filter, log, stats, hashers.Schedule)

	state.finishTraversal()
	hashers.Notify()
	log.Infof("Finished path traversal (%d candidates)", stats.Scanned.Load())

	hashers.Wait()
	if pending := hashers.Pending(); pending > 0 {
		stats.Abandoned.Add(int64(pending))
		log.Warningf("Stopped with %d paths never hashed", pending)
	}
	state.finishHashing()
	log.Infof("Finished hashing (%d digests, %d duplicates)", cache.Len(), stats.Duplicates.Load())

	writers.Wait()
	// Every worker has joined, the arena is no longer shared.
	if left := state.arena.Len(); left > 0 {
		stats.Abandoned.Add(int64(left))
		log.Warningf("Stopped with %d unique files never written", left)
	}
	state.advance(Done)
	log.Infof("Finished writing %d bytes in %v", stats.BytesWritten.Load(), time.Since(start))

	closeErr := out.Close()

	switch {
	case walkErr != nil:
		return stats.Snapshot(), walkErr
	case ctx.Err() != nil:
		return stats.Snapshot(), ctx.Err()
	case closeErr != nil:
		return stats.Snapshot(), fmt.Errorf("closing output: %w", closeErr)
	}
	return stats.Snapshot(), nil
}

func allocArena(capacity, maxPathLen int) (a *PathArena, err error) {
	if capacity <= 0 || capacity > maxCacheCapacity || maxPathLen <= 0 {
		return nil, fmt.Errorf("%w: path arena of %d entries x %d bytes", ErrStartup, capacity, maxPathLen)
	}
	// See NewHashCache: recover turns rejected sizes, not OOM, into ErrStartup.
	defer func() {
		if r := recover(); r != nil {
			a = nil
			err = fmt.Errorf("%w: allocating path arena for %d entries: %v", ErrStartup, capacity, r)
		}
	}()
	return NewPathArena(capacity, maxPathLen), nil
}
