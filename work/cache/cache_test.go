package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"xtream-bridge/work/config"
)

// countingFetcher hands out canned documents and counts upstream calls.
type countingFetcher struct {
	mu    sync.Mutex
	calls int32
	text  string
	err   error
	wait  chan struct{} // when set, Fetch blocks until closed
}

func (f *countingFetcher) Fetch(ctx context.Context, url string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.wait != nil {
		<-f.wait
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text, f.err
}

func (f *countingFetcher) set(text string, err error) {
	f.mu.Lock()
	f.text = text
	f.err = err
	f.mu.Unlock()
}

const testPlaylist = "#EXTM3U\n#EXTINF:-1,one\nhttp://h/1\n"

func newTestCache(f *countingFetcher) (*Snapshots, *time.Time) {
	cfg := config.Default()
	cfg.PlaylistTTL = 5 * time.Minute
	c := NewSnapshots(f, cfg)

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestSnapshots_SingleFetchWithinTTL(t *testing.T) {
	f := &countingFetcher{text: testPlaylist}
	c, _ := newTestCache(f)

	first, err := c.Get(context.Background(), "http://src/a.m3u")
	if err != nil {
		t.Fatalf("first Get: %v", err)
	}
	second, err := c.Get(context.Background(), "http://src/a.m3u")
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}

	if n := atomic.LoadInt32(&f.calls); n != 1 {
		t.Errorf("fetch called %d times, want 1", n)
	}
	if first != second {
		t.Error("expected the same snapshot pointer within the TTL")
	}
	if len(first.Channels) != 1 {
		t.Errorf("got %d channels, want 1", len(first.Channels))
	}
}

func TestSnapshots_RefetchAfterExpiry(t *testing.T) {
	f := &countingFetcher{text: testPlaylist}
	c, now := newTestCache(f)

	if _, err := c.Get(context.Background(), "http://src/a.m3u"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	*now = now.Add(6 * time.Minute)

	f.set(testPlaylist+"#EXTINF:-1,two\nhttp://h/2\n", nil)
	snap, err := c.Get(context.Background(), "http://src/a.m3u")
	if err != nil {
		t.Fatalf("Get after expiry: %v", err)
	}

	if n := atomic.LoadInt32(&f.calls); n != 2 {
		t.Errorf("fetch called %d times, want 2", n)
	}
	if len(snap.Channels) != 2 {
		t.Errorf("got %d channels after refresh, want 2", len(snap.Channels))
	}
}

func TestSnapshots_StaleIfError(t *testing.T) {
	f := &countingFetcher{text: testPlaylist}
	c, now := newTestCache(f)

	first, err := c.Get(context.Background(), "http://src/a.m3u")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	*now = now.Add(10 * time.Minute)
	f.set("", errors.New("upstream down"))

	stale, err := c.Get(context.Background(), "http://src/a.m3u")
	if err != nil {
		t.Fatalf("expected stale serve without error, got %v", err)
	}
	if stale != first {
		t.Error("expected the previous snapshot unchanged on refresh failure")
	}
}

func TestSnapshots_EmptyWhenNeverFetched(t *testing.T) {
	f := &countingFetcher{err: errors.New("no route")}
	c, _ := newTestCache(f)

	snap, err := c.Get(context.Background(), "http://src/a.m3u")
	if err == nil {
		t.Error("expected an error when no snapshot exists")
	}
	if snap == nil {
		t.Fatal("snapshot must never be nil")
	}
	if len(snap.Channels) != 0 || len(snap.Categories) != 0 {
		t.Errorf("expected an empty snapshot, got %d channels", len(snap.Channels))
	}
}

func TestSnapshots_SingleFlight(t *testing.T) {
	f := &countingFetcher{text: testPlaylist, wait: make(chan struct{})}
	c, _ := newTestCache(f)

	const callers = 8
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			c.Get(context.Background(), "http://src/a.m3u")
		}()
	}

	// Give the goroutines time to pile onto the in-flight fetch.
	time.Sleep(50 * time.Millisecond)
	close(f.wait)
	wg.Wait()

	if n := atomic.LoadInt32(&f.calls); n != 1 {
		t.Errorf("fetch called %d times for %d concurrent callers, want 1", n, callers)
	}
}

func TestSnapshots_IndependentSources(t *testing.T) {
	f := &countingFetcher{text: testPlaylist}
	c, _ := newTestCache(f)

	c.Get(context.Background(), "http://src/a.m3u")
	c.Get(context.Background(), "http://src/b.m3u")

	if n := atomic.LoadInt32(&f.calls); n != 2 {
		t.Errorf("fetch called %d times for two sources, want 2", n)
	}
}
