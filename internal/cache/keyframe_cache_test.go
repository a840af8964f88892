package cache

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/neowatch/neowatch/internal/astro"
	"github.com/neowatch/neowatch/internal/catalog"
	"github.com/neowatch/neowatch/internal/ephemeris"
	"github.com/neowatch/neowatch/internal/propagation"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDataset(fetchedAt time.Time) *catalog.Dataset {
	epoch := astro.JulianDay(fetchedAt)
	el := ephemeris.NewOrbitalElements(
		1.3*ephemeris.AstronomicalUnitM, 0.2, 5*math.Pi/180, 0, 0, 0.5, 0, epoch)
	objects := []*catalog.TrackedObject{
		{ID: "2000433", DisplayName: "433 Eros", Elements: &el},
		{ID: "3542519", DisplayName: "(2010 PK9)"},
	}
	return catalog.NewDataset("test", fetchedAt, objects)
}

func testSession() *propagation.Session {
	s := propagation.NewSession(testLogger())
	s.LoadCatalog(testDataset(time.Now()))
	return s
}

func testPropagator(s *propagation.Session) *propagation.Propagator {
	cfg := propagation.PropConfig{Workers: 2, Step: 5 * time.Second, Horizon: 30 * time.Second}
	return propagation.NewPropagator(s, cfg, testLogger())
}

func testConfig() Config {
	return Config{
		Step:        5 * time.Second,
		Horizon:     30 * time.Second,
		GracePeriod: 5 * time.Second,
		Buffer:      10 * time.Second,
	}
}

// TestKeyframeCache tests basic cache operations: put, get, evict.
func TestKeyframeCache(t *testing.T) {
	session := testSession()
	prop := testPropagator(session)
	c := NewKeyframeCache(testConfig(), prop, session, testLogger())

	ctx := context.Background()
	target := time.Now().Truncate(5 * time.Second)
	kf, err := prop.PropagateToTime(ctx, target)
	if err != nil {
		t.Fatalf("PropagateToTime failed: %v", err)
	}

	c.put(kf)

	got := c.Get(target)
	if got == nil {
		t.Fatal("expected cache hit, got nil")
	}
	if !got.Timestamp.Equal(target) {
		t.Errorf("timestamp mismatch: got %v, want %v", got.Timestamp, target)
	}

	stats := c.Stats()
	if stats.Entries != 1 {
		t.Errorf("entries: got %d, want 1", stats.Entries)
	}
	if stats.Hits < 1 {
		t.Errorf("hits: got %d, want >= 1", stats.Hits)
	}
}

// TestRoundToStep verifies timestamp rounding.
func TestRoundToStep(t *testing.T) {
	session := testSession()
	c := NewKeyframeCache(testConfig(), testPropagator(session), session, testLogger())

	tests := []struct {
		input    time.Time
		expected time.Time
	}{
		{
			input:    time.Date(2026, 3, 6, 12, 0, 3, 0, time.UTC),
			expected: time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC),
		},
		{
			input:    time.Date(2026, 3, 6, 12, 0, 7, 0, time.UTC),
			expected: time.Date(2026, 3, 6, 12, 0, 5, 0, time.UTC),
		},
		{
			input:    time.Date(2026, 3, 6, 12, 0, 10, 0, time.UTC),
			expected: time.Date(2026, 3, 6, 12, 0, 10, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		got := c.RoundToStep(tt.input)
		if !got.Equal(tt.expected) {
			t.Errorf("RoundToStep(%v) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

// TestCacheMiss verifies that a miss returns nil and increments miss counter.
func TestCacheMiss(t *testing.T) {
	session := testSession()
	c := NewKeyframeCache(testConfig(), testPropagator(session), session, testLogger())

	got := c.Get(time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC))
	if got != nil {
		t.Fatal("expected nil for cache miss")
	}

	stats := c.Stats()
	if stats.Misses < 1 {
		t.Errorf("misses: got %d, want >= 1", stats.Misses)
	}
}

// TestEvictExpired verifies that expired entries are removed.
func TestEvictExpired(t *testing.T) {
	session := testSession()
	prop := testPropagator(session)
	cfg := testConfig()
	cfg.Buffer = 0 // No buffer, evict immediately if in the past.
	c := NewKeyframeCache(cfg, prop, session, testLogger())

	ctx := context.Background()

	pastTime := time.Now().Add(-2 * time.Minute).Truncate(5 * time.Second)
	kf, err := prop.PropagateToTime(ctx, pastTime)
	if err != nil {
		t.Fatalf("PropagateToTime failed: %v", err)
	}
	c.put(kf)

	futureTime := time.Now().Add(1 * time.Minute).Truncate(5 * time.Second)
	kf2, err := prop.PropagateToTime(ctx, futureTime)
	if err != nil {
		t.Fatalf("PropagateToTime failed: %v", err)
	}
	c.put(kf2)

	if c.Stats().Entries != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Stats().Entries)
	}

	removed := c.evictExpired()
	if removed != 1 {
		t.Errorf("expected 1 eviction, got %d", removed)
	}

	if c.Get(pastTime) != nil {
		t.Error("expected past entry to be evicted")
	}
	if c.Get(futureTime) == nil {
		t.Error("expected future entry to remain")
	}
}

// TestGetRecent verifies trail retrieval order and bounds.
func TestGetRecent(t *testing.T) {
	session := testSession()
	prop := testPropagator(session)
	c := NewKeyframeCache(testConfig(), prop, session, testLogger())

	ctx := context.Background()
	base := time.Now().Truncate(5 * time.Second)
	for i := 0; i < 4; i++ {
		kf, err := prop.PropagateToTime(ctx, base.Add(time.Duration(i)*5*time.Second))
		if err != nil {
			t.Fatalf("PropagateToTime failed: %v", err)
		}
		c.put(kf)
	}

	frames := c.GetRecent(base.Add(15*time.Second), 3)
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	for i := 1; i < len(frames); i++ {
		if !frames[i].Timestamp.After(frames[i-1].Timestamp) {
			t.Errorf("frames not oldest-first at index %d", i)
		}
	}

	if got := c.GetRecent(base, 0); got != nil {
		t.Error("GetRecent with count 0 should return nil")
	}
}

// TestIncrementalGeneration verifies the background warmup fills the cache.
func TestIncrementalGeneration(t *testing.T) {
	session := testSession()
	prop := testPropagator(session)
	cfg := testConfig()
	cfg.Horizon = 15 * time.Second // 4 keyframes: 0, 5, 10, 15.
	c := NewKeyframeCache(cfg, prop, session, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c.warmup(ctx)

	stats := c.Stats()
	expectedFrames := int(cfg.Horizon/cfg.Step) + 1
	if stats.Entries < expectedFrames {
		t.Errorf("warmup generated %d entries, expected >= %d", stats.Entries, expectedFrames)
	}

	kf := c.GetLatest()
	if kf == nil {
		t.Fatal("GetLatest returned nil after warmup")
	}
}

// TestCatalogCutover verifies graceful catalog dataset cutover.
func TestCatalogCutover(t *testing.T) {
	session := testSession()
	prop := testPropagator(session)
	cfg := testConfig()
	cfg.Horizon = 10 * time.Second // 3 keyframes: 0, 5, 10.
	c := NewKeyframeCache(cfg, prop, session, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c.warmup(ctx)

	oldStats := c.Stats()
	if oldStats.Entries == 0 {
		t.Fatal("no entries after warmup")
	}

	// Simulate a refresh by loading a dataset with a different FetchedAt.
	session.LoadCatalog(testDataset(time.Now().Add(1 * time.Second)))

	if !c.catalogChanged() {
		t.Fatal("expected catalogChanged() to return true after refresh")
	}

	c.performCutover(ctx)

	if c.inGracePeriod.Load() {
		t.Error("grace period should be false after cutover")
	}

	newStats := c.Stats()
	if newStats.Entries == 0 {
		t.Fatal("no entries after cutover")
	}

	if c.catalogChanged() {
		t.Error("expected catalogChanged() to return false after cutover")
	}
}

// TestGetLatestEmpty verifies GetLatest with empty cache returns nil.
func TestGetLatestEmpty(t *testing.T) {
	session := testSession()
	c := NewKeyframeCache(testConfig(), testPropagator(session), session, testLogger())

	got := c.GetLatest()
	if got != nil {
		t.Fatal("expected nil from empty cache")
	}
}

// TestConcurrentAccess verifies cache is safe for concurrent reads and writes.
func TestConcurrentAccess(t *testing.T) {
	session := testSession()
	c := NewKeyframeCache(testConfig(), testPropagator(session), session, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	go c.Start(ctx)

	// Give warmup time to complete.
	time.Sleep(3 * time.Second)

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				c.GetLatest()
				c.Get(time.Now())
				c.Stats()
			}
			done <- struct{}{}
		}()
	}

	for i := 0; i < 10; i++ {
		select {
		case <-done:
		case <-ctx.Done():
			t.Fatal("timeout waiting for concurrent reads")
		}
	}
}

// TestSizeEstimation verifies the size estimation is reasonable.
func TestSizeEstimation(t *testing.T) {
	session := testSession()
	prop := testPropagator(session)
	cfg := testConfig()
	cfg.Horizon = 10 * time.Second
	c := NewKeyframeCache(cfg, prop, session, testLogger())

	ctx := context.Background()
	c.warmup(ctx)

	stats := c.Stats()
	if stats.SizeBytes <= 0 {
		t.Errorf("expected positive size estimate, got %d", stats.SizeBytes)
	}

	// With 2 objects and 3 entries, size should be small (< 10KB).
	if stats.SizeBytes > 10000 {
		t.Errorf("size estimate seems too large for 2 objects: %d bytes", stats.SizeBytes)
	}
}
