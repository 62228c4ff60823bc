package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func TestTable_UpsertAndHeartbeat(t *testing.T) {
	clock := newFakeClock()
	tbl := NewTable(90*time.Second, clock.Now)

	rec, isNew := tbl.Upsert("127.0.0.1:10001")
	assert.True(t, isNew)
	assert.EqualValues(t, 1, rec.Heartbeats, "the first REGISTER counts")

	clock.Advance(30 * time.Second)
	rec, isNew = tbl.Upsert("127.0.0.1:10001")
	assert.False(t, isNew)
	assert.EqualValues(t, 2, rec.Heartbeats)
	assert.Equal(t, clock.Now(), rec.LastSeen)
	assert.Equal(t, 1, tbl.Len())
}

func TestTable_LastSeenNeverDecreases(t *testing.T) {
	clock := newFakeClock()
	tbl := NewTable(90*time.Second, clock.Now)

	clock.Advance(time.Minute)
	first, _ := tbl.Upsert("a:1")

	clock.Set(first.LastSeen.Add(-10 * time.Second))
	rec, _ := tbl.Upsert("a:1")
	assert.Equal(t, first.LastSeen, rec.LastSeen)
}

func TestTable_EvictAfterTimeout(t *testing.T) {
	clock := newFakeClock()
	tbl := NewTable(90*time.Second, clock.Now)

	tbl.Upsert("127.0.0.1:10001")
	clock.Advance(90 * time.Second)
	assert.Equal(t, []string{"127.0.0.1:10001"}, tbl.List(), "exactly at the timeout the peer is still live")

	clock.Advance(time.Second)
	assert.Empty(t, tbl.List())
	_, ok := tbl.Remove("127.0.0.1:10001")
	assert.False(t, ok)
}

func TestTable_EvictSweep(t *testing.T) {
	clock := newFakeClock()
	tbl := NewTable(90*time.Second, clock.Now)

	tbl.Upsert("a:1")
	clock.Advance(60 * time.Second)
	tbl.Upsert("b:2")
	clock.Advance(31 * time.Second)

	assert.Equal(t, []string{"a:1"}, tbl.Evict())
	assert.Equal(t, 1, tbl.Len())
	assert.Empty(t, tbl.Evict())
}

func TestTable_Remove(t *testing.T) {
	tbl := NewTable(time.Minute, nil)
	tbl.Upsert("a:1")

	tbl.Upsert("a:1")

	rec, ok := tbl.Remove("a:1")
	assert.True(t, ok)
	assert.Equal(t, "a:1", rec.Addr)
	assert.EqualValues(t, 2, rec.Heartbeats)

	_, ok = tbl.Remove("a:1")
	assert.False(t, ok)
	assert.Zero(t, tbl.Len())
}

func TestTable_NoStaleAddressEverListed(t *testing.T) {
	clock := newFakeClock()
	timeout := 90 * time.Second
	tbl := NewTable(timeout, clock.Now)

	lastSeen := map[string]time.Time{}
	addrs := []string{"a:1", "b:2", "c:3"}

	for step := 0; step < 200; step++ {
		addr := addrs[step%len(addrs)]
		switch step % 7 {
		case 0, 2, 5:
			tbl.Upsert(addr)
			lastSeen[addr] = clock.Now()
		case 3:
			tbl.Remove(addr)
			delete(lastSeen, addr)
		}
		clock.Advance(time.Duration(step%40) * time.Second)

		for _, a := range tbl.List() {
			seen, ok := lastSeen[a]
			require.True(t, ok, "listed unknown address %s", a)
			require.LessOrEqual(t, clock.Now().Sub(seen), timeout, "listed stale address %s", a)
		}
	}
}

func TestTable_Concurrent(t *testing.T) {
	tbl := NewTable(time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tbl.Upsert("a:1")
			tbl.List()
		}()
	}
	wg.Wait()

	rec, ok := tbl.Remove("a:1")
	require.True(t, ok)
	assert.EqualValues(t, 50, rec.Heartbeats)
}
