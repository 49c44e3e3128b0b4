package regioncopy

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionSet_CreateAndGet(t *testing.T) {
	set := NewRegionSet()
	r, id := set.Create(16)
	require.Equal(t, 16, r.Len())

	got, ok := set.Get(id)
	require.True(t, ok)
	assert.Same(t, r, got)
}

func TestRegionSet_GetOrCreate_DedupsConcurrentCreation(t *testing.T) {
	set := NewRegionSet()
	const id RegionID = 42
	const n = 32

	var wg sync.WaitGroup
	results := make([]*Region, n)
	wg.Add(n)
	for i := range n {
		go func(i int) {
			defer wg.Done()
			results[i] = set.GetOrCreate(id, 8)
		}(i)
	}
	wg.Wait()

	first := results[0]
	require.NotNil(t, first)
	for _, r := range results[1:] {
		assert.Same(t, first, r, "all callers racing on the same unborn id must observe the same region")
	}
}

func TestRegionSet_Remove(t *testing.T) {
	set := NewRegionSet()
	_, id := set.Create(8)
	set.Remove(id)

	_, ok := set.Get(id)
	assert.False(t, ok)
}

func TestCopyBounded_Mapped(t *testing.T) {
	set := NewRegionSet()
	src, _ := set.Create(8)
	dst, _ := set.Create(8)
	copy(src.data, []byte("abcdefgh"))

	n, err := CopyBounded(dst, src, 2, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("\x00\x00abcd\x00\x00"), dst.data)
}

func TestCopyBounded_ClampsToShorterRegion(t *testing.T) {
	set := NewRegionSet()
	src, _ := set.Create(4)
	dst, _ := set.Create(16)
	copy(src.data, []byte("wxyz"))

	n, err := CopyBounded(dst, src, 0, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, 4, n, "copy must clamp to what actually fits in the shorter region")
	assert.Equal(t, []byte("wxyz"), dst.data[:4])
}

func TestCopyBounded_OffsetOutOfRange(t *testing.T) {
	set := NewRegionSet()
	src, _ := set.Create(4)
	dst, _ := set.Create(4)

	_, err := CopyBounded(dst, src, 10, 0, 1)
	assert.Error(t, err)
}

func TestCopyBounded_SameRegion(t *testing.T) {
	set := NewRegionSet()
	r, _ := set.Create(8)
	copy(r.data, []byte("abcdefgh"))

	n, err := CopyBounded(r, r, 0, 4, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("efghefgh"), r.data)
}

func TestCopyBounded_Pooled(t *testing.T) {
	set := NewRegionSet()
	size := mappedThreshold + poolChunkSize + 37
	src, _ := set.Create(size)
	dst, _ := set.Create(size)
	for i := range src.data {
		src.data[i] = byte(i)
	}

	n, err := CopyBounded(dst, src, 0, 0, size)
	require.NoError(t, err)
	require.Equal(t, size, n)
	assert.Equal(t, src.data, dst.data)
	assert.False(t, dst.LargeCopyInProgress(), "flag must be cleared once the pooled copy returns")
}

func TestCopyBounded_AvoidsDeadlockAcrossOppositeDirections(t *testing.T) {
	set := NewRegionSet()
	a, _ := set.Create(64)
	b, _ := set.Create(64)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 200 {
			_, _ = CopyBounded(a, b, 0, 0, 8)
		}
	}()
	go func() {
		defer wg.Done()
		for range 200 {
			_, _ = CopyBounded(b, a, 0, 0, 8)
		}
	}()
	wg.Wait()
}

func TestRegion_ResizePreservesContents(t *testing.T) {
	set := NewRegionSet()
	r, _ := set.Create(4)
	copy(r.data, []byte("abcd"))

	require.NoError(t, r.Resize(8))
	assert.Equal(t, 8, r.Len())
	assert.Equal(t, []byte("abcd"), r.data[:4])

	require.NoError(t, r.Resize(2))
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []byte("ab"), r.data)
}

func TestRegionSet_Alias(t *testing.T) {
	set := NewRegionSet()
	r, _ := set.Create(8)

	_, ok := set.ResolveAlias("lsass.exe")
	assert.False(t, ok, "unregistered alias must not resolve")

	set.Alias("lsass.exe", r.ID())
	got, ok := set.ResolveAlias("lsass.exe")
	require.True(t, ok)
	assert.Same(t, r, got)

	set.Unalias("lsass.exe")
	_, ok = set.ResolveAlias("lsass.exe")
	assert.False(t, ok, "alias must not resolve after Unalias")
}

func TestRegionSet_AliasOverwrite(t *testing.T) {
	set := NewRegionSet()
	r1, _ := set.Create(8)
	r2, _ := set.Create(8)

	set.Alias("svchost.exe", r1.ID())
	set.Alias("svchost.exe", r2.ID())

	got, ok := set.ResolveAlias("svchost.exe")
	require.True(t, ok)
	assert.Same(t, r2, got, "later Alias call must win")
}

func TestRegion_TryResize(t *testing.T) {
	set := NewRegionSet()
	r, _ := set.Create(4)

	r.mu.AcquireShared()
	ok, err := r.TryResize(10)
	require.NoError(t, err)
	assert.False(t, ok, "TryResize must not block or succeed while the region is held")
	r.mu.ReleaseShared()

	ok, err = r.TryResize(10)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10, r.Len())
}
