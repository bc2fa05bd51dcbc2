package merge

import (
	"hash"
	"sync"
	"time"
)

// HashPool digests scheduled paths and forwards the first path seen for
// each digest to the write side through the pipeline arena.
type HashPool struct {
	state *pipeline
	cache *HashCache
	alg   Algorithm

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []string
	head    int
	running bool

	wg sync.WaitGroup
}

func newHashPool(state *pipeline, cache *HashCache, alg Algorithm) *HashPool {
	p := &HashPool{
		state: state,
		cache: cache,
		alg:   alg,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Start launches workers goroutines. Each worker owns its hasher and copy
// buffer for the lifetime of the pool.
func (p *HashPool) Start(workers int) error {
	hashers := make([]hash.Hash, workers)
	for i := range hashers {
		h, err := NewHash(p.alg)
		if err != nil {
			return err
		}
		hashers[i] = h
	}

	p.mu.Lock()
	p.running = true
	p.mu.Unlock()

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i, hashers[i])
	}
	return nil
}

// Schedule queues path for hashing and wakes one worker.
func (p *HashPool) Schedule(path string) {
	p.mu.Lock()
	p.queue = append(p.queue, path)
	p.mu.Unlock()
	p.cond.Signal()
}

// Notify wakes every worker so they re-check the traversal flag.
func (p *HashPool) Notify() {
	p.mu.Lock()
	p.cond.Broadcast()
	p.mu.Unlock()
}

// Wait blocks until every worker has exited.
func (p *HashPool) Wait() {
	p.wg.Wait()
}

// Stop makes workers exit on their next wake regardless of queued paths,
// then joins them.
func (p *HashPool) Stop() {
	p.halt()
	p.wg.Wait()
}

func (p *HashPool) halt() {
	p.mu.Lock()
	p.running = false
	p.cond.Broadcast()
	p.mu.Unlock()
}

// Pending reports the number of queued, not yet claimed paths.
func (p *HashPool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue) - p.head
}

// next blocks until a path is available or the worker must exit.
func (p *HashPool) next() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.running && p.head == len(p.queue) && !p.state.traversalDone.Load() {
		p.cond.Wait()
	}
	if !p.running || p.head == len(p.queue) {
		return "", false
	}

	path := p.queue[p.head]
	p.queue[p.head] = ""
	p.head++
	if p.head == len(p.queue) {
		p.queue = p.queue[:0]
		p.head = 0
	}
	return path, true
}

func (p *HashPool) worker(id int, h hash.Hash) {
	defer p.wg.Done()

	start := time.Now()
	buf := make([]byte, hashCopyBufferSize)
	log := p.state.log
	stats := p.state.stats

	for {
		path, ok := p.next()
		if !ok {
			break
		}

		digest, err := DigestFile(path, h, buf)
		if err != nil {
			stats.HashFailures.Add(1)
			log.Warningf("Failed to hash %s: %v", path, err)
			continue
		}
		log.Debugf("%s %s", path, digest)

		if !p.cache.Insert(digest) {
			stats.Duplicates.Add(1)
			log.Debugf("Skipping duplicate %s", path)
			continue
		}
		stats.Unique.Add(1)

		if !p.state.handOff(path) {
			stats.Dropped.Add(1)
			log.Warningf("Path arena full (%d entries), dropping %s", p.state.arena.Cap(), path)
			continue
		}
		log.Debugf("Added unique %s", path)
	}

	log.Infof("Hash worker %d finished in %dms", id, time.Since(start).Milliseconds())
}
