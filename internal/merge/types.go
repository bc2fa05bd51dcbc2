package merge

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Options contains merge parameters
type Options struct {
	RootDir      string    // Directory tree to scan
	OutputPath   string    // Merged output file
	Extension    string    // Dot-prefixed, case-sensitive extension filter
	HashWorkers  int       // Number of hashing goroutines
	WriteWorkers int       // Number of writing goroutines
	Capacity     int       // Path arena slots and hash cache reservation
	MaxPathLen   int       // Longest candidate path accepted
	BufferSize   int64     // Private read buffer per write worker
	UseMMap      bool      // Map files larger than BufferSize instead of skipping them
	Algorithm    Algorithm // Content digest function
	ExcludeDirs  []string  // Directories to exclude from the walk
	Logger       *Logger   // Defaults to a discarding logger
	OnWritten    func(path string, n int64)
}

const (
	DefaultHashWorkers  = 5
	DefaultWriteWorkers = 2
	DefaultCapacity     = 1 << 20 // 1,048,576 files
	DefaultMaxPathLen   = 450
	DefaultBufferSize   = 32 * 1024 * 1024 // 32MB
	DefaultRootDir      = "./"

	// hashCopyBufferSize is the per hash worker streaming buffer.
	hashCopyBufferSize = 32 * 1024
	// maxBufferSize caps a single write worker buffer.
	maxBufferSize = 4 * 1024 * 1024 * 1024
)

func (o *Options) setDefaults() {
	if o.RootDir == "" {
		o.RootDir = DefaultRootDir
	}
	if o.HashWorkers <= 0 {
		o.HashWorkers = DefaultHashWorkers
	}
	if o.WriteWorkers <= 0 {
		o.WriteWorkers = DefaultWriteWorkers
	}
	if o.Capacity <= 0 {
		o.Capacity = DefaultCapacity
	}
	if o.MaxPathLen <= 0 {
		o.MaxPathLen = DefaultMaxPathLen
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.Algorithm == "" {
		o.Algorithm = BLAKE2b
	}
}

// Validate checks the options a run cannot start without.
func (o *Options) Validate() error {
	switch {
	case o.OutputPath == "":
		return fmt.Errorf("%w: missing output file", ErrInvalidOptions)
	case o.Extension == "":
		return fmt.Errorf("%w: missing extension", ErrInvalidOptions)
	case !strings.HasPrefix(o.Extension, "."):
		return fmt.Errorf("%w: extension %q must start with a dot", ErrInvalidOptions, o.Extension)
	case o.BufferSize > maxBufferSize:
		return fmt.Errorf("%w: buffer size %d exceeds %d", ErrInvalidOptions, o.BufferSize, int64(maxBufferSize))
	}
	if _, err := NewHash(o.Algorithm); err != nil {
		return err
	}
	return nil
}

// Stats counts what happened to every candidate during one run
type Stats struct {
	Scanned       atomic.Int64 // files accepted by the walk filter
	Unique        atomic.Int64 // first sight of a digest
	Duplicates    atomic.Int64
	TooLong       atomic.Int64 // rejected by the walk for exceeding MaxPathLen
	Dropped       atomic.Int64 // unique but rejected by a full arena
	HashFailures  atomic.Int64
	Written       atomic.Int64
	Empty         atomic.Int64
	ReadFailures  atomic.Int64
	WriteFailures atomic.Int64
	BytesWritten  atomic.Int64
	Abandoned     atomic.Int64 // still queued or in the arena when a hard stop hit
}

// Snapshot is a plain copy of Stats
type Snapshot struct {
	Scanned       int64
	Unique        int64
	Duplicates    int64
	TooLong       int64
	Dropped       int64
	HashFailures  int64
	Written       int64
	Empty         int64
	ReadFailures  int64
	WriteFailures int64
	BytesWritten  int64
	Abandoned     int64
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Scanned:       s.Scanned.Load(),
		Unique:        s.Unique.Load(),
		Duplicates:    s.Duplicates.Load(),
		TooLong:       s.TooLong.Load(),
		Dropped:       s.Dropped.Load(),
		HashFailures:  s.HashFailures.Load(),
		Written:       s.Written.Load(),
		Empty:         s.Empty.Load(),
		ReadFailures:  s.ReadFailures.Load(),
		WriteFailures: s.WriteFailures.Load(),
		BytesWritten:  s.BytesWritten.Load(),
		Abandoned:     s.Abandoned.Load(),
	}
}

// Failures sums every per-file failure.
func (s Snapshot) Failures() int64 {
	return s.TooLong + s.Dropped + s.HashFailures + s.ReadFailures + s.WriteFailures
}
