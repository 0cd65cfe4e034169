package chunk

import (
	"sync"
	"testing"
)

func TestGetBufReturnsSizedBuffer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		requestSize int
		expectCap   int
	}{
		{name: "small", requestSize: 64, expectCap: 256},
		{name: "exact small", requestSize: 256, expectCap: 256},
		{name: "medium", requestSize: 1024, expectCap: DefaultChunkSize},
		{name: "large", requestSize: 9000, expectCap: MaxChunkSize},
		{name: "oversized", requestSize: 131072, expectCap: 131072},
		{name: "zero", requestSize: 0, expectCap: 0},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			buf := getBuf(tc.requestSize)
			if tc.requestSize == 0 {
				if len(buf) != 0 || cap(buf) != 0 {
					t.Fatalf("expected zero-length buffer, got len=%d cap=%d", len(buf), cap(buf))
				}
				return
			}

			if len(buf) != tc.requestSize {
				t.Fatalf("expected len=%d, got %d", tc.requestSize, len(buf))
			}
			if cap(buf) != tc.expectCap {
				t.Fatalf("expected cap=%d, got %d", tc.expectCap, cap(buf))
			}
		})
	}
}

func TestPutBufReusesBuffer(t *testing.T) {
	t.Parallel()

	buf := getBuf(200)
	if len(buf) != 200 {
		t.Fatalf("expected len=200, got %d", len(buf))
	}
	buf[0] = 42
	ptr := &buf[:1][0]
	putBuf(buf)

	reused := getBuf(200)
	if len(reused) != 200 {
		t.Fatalf("expected len=200, got %d", len(reused))
	}
	if cap(reused) != 256 {
		t.Fatalf("expected cap=256, got %d", cap(reused))
	}
	if &reused[:1][0] != ptr {
		t.Fatalf("expected to get the same buffer pointer back from the pool")
	}
	for i, v := range reused {
		if v != 0 {
			t.Fatalf("expected buffer to be zeroed, found value %d at index %d", v, i)
		}
	}
}

func TestBufPoolConcurrentAccess(t *testing.T) {
	t.Parallel()

	var wg sync.WaitGroup
	worker := func(size int) {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			buf := getBuf(size)
			if len(buf) != size {
				t.Fatalf("expected len=%d, got %d", size, len(buf))
			}
			if cap(buf) < size {
				t.Fatalf("expected cap >= %d, got %d", size, cap(buf))
			}
			for j := range buf {
				buf[j] = byte(i)
			}
			putBuf(buf)
		}
	}

	sizes := []int{64, 512, 2048, 9000, 40000}
	for _, size := range sizes {
		size := size
		wg.Add(1)
		go worker(size)
	}
	wg.Wait()
}
