package merge

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/edsrzf/mmap-go"
)

// WritePool pops unique paths from the pipeline arena, reads each file whole
// and appends it to the shared output. Reads run in parallel; writes are
// serialized by outMu, so the order of files in the output is a race.
type WritePool struct {
	state     *pipeline
	out       io.Writer
	outMu     sync.Mutex
	useMMap   bool
	onWritten func(path string, n int64)

	buffers [][]byte
	running bool // guarded by state.mu
	wg      sync.WaitGroup
}

// newWritePool allocates one private read buffer per worker. A size the
// runtime refuses to allocate is a startup error; running out of memory
// while allocating is fatal and cannot be reported.
func newWritePool(state *pipeline, out io.Writer, workers int, bufferSize int64, useMMap bool) (wp *WritePool, err error) {
	if workers <= 0 || bufferSize <= 0 {
		return nil, fmt.Errorf("%w: %d write workers with %d byte buffers", ErrStartup, workers, bufferSize)
	}

	defer func() {
		if r := recover(); r != nil {
			wp = nil
			err = fmt.Errorf("%w: allocating %d read buffers of %d bytes: %v", ErrStartup, workers, bufferSize, r)
		}
	}()

	buffers := make([][]byte, workers)
	for i := range buffers {
		buffers[i] = make([]byte, bufferSize)
	}

	return &WritePool{
		state:   state,
		out:     out,
		useMMap: useMMap,
		buffers: buffers,
	}, nil
}

// Start launches one worker per allocated buffer.
func (p *WritePool) Start() {
	p.state.mu.Lock()
	p.running = true
	p.state.mu.Unlock()

	for i := range p.buffers {
		p.wg.Add(1)
		go p.worker(i, p.buffers[i])
	}
}

// Wait blocks until every worker has exited.
func (p *WritePool) Wait() {
	p.wg.Wait()
}

// Stop makes workers exit on their next wake even if paths remain in the
// arena, then joins them.
func (p *WritePool) Stop() {
	p.halt()
	p.wg.Wait()
}

func (p *WritePool) halt() {
	p.state.mu.Lock()
	p.running = false
	p.state.cond.Broadcast()
	p.state.mu.Unlock()
}

// next blocks until the arena holds a path or the worker must exit.
func (p *WritePool) next() (string, bool) {
	s := p.state
	s.mu.Lock()
	defer s.mu.Unlock()

	for p.running && s.arena.Empty() && !s.hashingDone.Load() {
		s.cond.Wait()
	}
	if !p.running || s.arena.Empty() {
		return "", false
	}

	path := s.arena.Last()
	s.arena.PopLast()
	return path, true
}

func (p *WritePool) worker(id int, buf []byte) {
	defer p.wg.Done()

	start := time.Now()
	log := p.state.log
	stats := p.state.stats

	for {
		path, ok := p.next()
		if !ok {
			break
		}

		log.Debugf("Reading %s", path)
		n, err := p.copyFile(path, buf)
		switch {
		case errors.Is(err, errEmptyFile):
			stats.Empty.Add(1)
			log.Debugf("Empty file %s", path)
		case errors.Is(err, errWrite):
			stats.WriteFailures.Add(1)
			log.Errorf("Failed to write %s: %v", path, err)
		case err != nil:
			stats.ReadFailures.Add(1)
			log.Warningf("Failed to read %s: %v", path, err)
		default:
			stats.Written.Add(1)
			stats.BytesWritten.Add(n)
			if p.onWritten != nil {
				p.onWritten(path, n)
			}
		}
	}

	log.Infof("Write worker %d finished in %dms", id, time.Since(start).Milliseconds())
}

var (
	errEmptyFile = errors.New("empty file")
	errWrite     = errors.New("write to output failed")
)

// copyFile reads path whole and appends it to the output. Files that fit in
// buf are read into it; larger ones are memory-mapped when enabled.
func (p *WritePool) copyFile(path string, buf []byte) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return p.copyOpened(f, info.Size(), buf)
}

// copyOpened copies f, whose size was size when it was opened. Live files
// may have grown since then: a filled buffer is checked against the
// current size so the tail is never cut off silently.
func (p *WritePool) copyOpened(f *os.File, size int64, buf []byte) (int64, error) {
	if size == 0 {
		return 0, errEmptyFile
	}
	if size > int64(len(buf)) {
		return p.copyLarge(f, size, int64(len(buf)))
	}

	n, err := io.ReadFull(f, buf)
	switch {
	case err == nil:
		info, err := f.Stat()
		if err != nil {
			return 0, err
		}
		if grown := info.Size(); grown > int64(len(buf)) {
			return p.copyLarge(f, grown, int64(len(buf)))
		}
	case err == io.EOF || err == io.ErrUnexpectedEOF:
	default:
		return 0, err
	}
	if n == 0 {
		return 0, errEmptyFile
	}
	return p.write(buf[:n])
}

func (p *WritePool) copyLarge(f *os.File, size, limit int64) (int64, error) {
	if !p.useMMap {
		return 0, fmt.Errorf("file is %d bytes, read buffer holds %d", size, limit)
	}
	return p.copyMapped(f)
}

func (p *WritePool) copyMapped(f *os.File) (int64, error) {
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to mmap file: %w", err)
	}
	defer data.Unmap()

	return p.write(data)
}

func (p *WritePool) write(data []byte) (int64, error) {
	p.outMu.Lock()
	defer p.outMu.Unlock()

	n, err := p.out.Write(data)
	if err != nil {
		return int64(n), fmt.Errorf("%w: %v", errWrite, err)
	}
	return int64(n), nil
}
