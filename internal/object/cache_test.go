package object

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCacheSymlistSortedAndConsistent(t *testing.T) {
	f := testFile(FormatELF)
	var c Cache

	symlist := c.Symlist(f)
	require.Len(t, symlist, len(f.Symbols))
	for i := 1; i < len(symlist); i++ {
		require.LessOrEqual(t,
			f.Symbols[symlist[i-1]].Addr,
			f.Symbols[symlist[i]].Addr,
			"symlist must be address-sorted",
		)
	}

	// Every entry of the address index is findable in the sorted list.
	for _, entry := range c.AddrToSym(f) {
		found := false
		for _, idx := range symlist {
			if f.Symbols[idx].Addr == entry.Addr {
				found = true
				break
			}
		}
		require.True(t, found, "entry %q missing from symlist", entry.Name)
	}
}

func TestCacheBuiltOnce(t *testing.T) {
	f := testFile(FormatELF)
	var c Cache

	const goroutines = 16
	results := make([][]int, goroutines)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results[i] = c.Symlist(f)
		}()
	}
	close(start)
	wg.Wait()

	// Same backing slice for every caller: the constructor ran once.
	for i := 1; i < goroutines; i++ {
		require.Same(t, &results[0][0], &results[i][0], "caller %d saw a different slice", i)
	}
}

func TestCacheSectionDataSharedBuffer(t *testing.T) {
	var reads atomic.Int32
	f := testFile(FormatELF)
	f.Sections[0].Raw = func() ([]byte, error) {
		reads.Add(1)
		return []byte{1, 2, 3, 4}, nil
	}

	var c Cache
	const goroutines = 8
	buffers := make([][]byte, goroutines)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			b, err := c.SectionData(f, 0)
			require.NoError(t, err)
			buffers[i] = b
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, int32(1), reads.Load(), "section read and decompressed once")
	for i := 1; i < goroutines; i++ {
		require.Same(t, &buffers[0][0], &buffers[i][0], "buffer must be shared, not copied")
	}
}

func TestCacheSectionDataUninitialized(t *testing.T) {
	f := testFile(FormatELF)
	f.Sections[1].Kind = SectionUninitializedData

	var c Cache
	b, err := c.SectionData(f, 1)
	require.NoError(t, err)
	require.Empty(t, b)
}

func TestCacheDynRelaSorted(t *testing.T) {
	f := testFile(FormatELF)
	f.DynRelas = []DynRela{
		{Addr: 0x330, Target: TargetAbsolute, Addend: 0x100},
		{Addr: 0x310, Target: TargetSymbol, Symbol: 0},
		{Addr: 0x320, Target: TargetSymbol, Symbol: 1},
	}

	var c Cache
	relas := c.DynRela(f)
	require.Len(t, relas, 3)
	for i := 1; i < len(relas); i++ {
		require.Less(t, relas[i-1].Addr, relas[i].Addr)
	}
	// The file's own list is untouched.
	require.Equal(t, uint64(0x330), f.DynRelas[0].Addr)
}
