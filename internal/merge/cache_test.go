package merge

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestHashCacheInsert(t *testing.T) {
	c, err := NewHashCache(16)
	if err != nil {
		t.Fatalf("NewHashCache: %v", err)
	}

	a := DigestOf([]byte{1, 2, 3})
	b := DigestOf([]byte{4, 5, 6})

	if !c.Insert(a) {
		t.Fatal("first Insert(a) should report a new digest")
	}
	if c.Insert(a) {
		t.Fatal("second Insert(a) should report a duplicate")
	}
	if !c.Insert(b) {
		t.Fatal("Insert(b) should report a new digest")
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
}

func TestHashCacheDistinguishesLength(t *testing.T) {
	c, _ := NewHashCache(4)

	// Same leading bytes, different sizes.
	if !c.Insert(DigestOf([]byte{7, 7})) || !c.Insert(DigestOf([]byte{7, 7, 0})) {
		t.Fatal("digests of different sizes must not collide")
	}
}

func TestHashCacheConcurrentInsertClaimsOnce(t *testing.T) {
	c, _ := NewHashCache(64)
	d := DigestOf([]byte("same content"))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Insert(d) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("%d goroutines saw the digest as new, want exactly 1", wins.Load())
	}
}

func TestNewHashCacheRejectsBadCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1, maxCacheCapacity + 1} {
		_, err := NewHashCache(capacity)
		if !errors.Is(err, ErrStartup) {
			t.Errorf("NewHashCache(%d) error = %v, want ErrStartup", capacity, err)
		}
	}
}
