package wall

import (
	"sync"
	"testing"
)

func TestCounter_ReadAndReset(t *testing.T) {
	var c Counter
	c.Add(50)
	if got := c.ReadAndReset(100, 10); got != 5 {
		t.Errorf("ReadAndReset() = %d, want 5", got)
	}
	if got := c.ReadAndReset(100, 10); got != 0 {
		t.Errorf("second ReadAndReset() = %d, want 0", got)
	}
}

func TestCounter_Rounding(t *testing.T) {
	tests := []struct {
		bytes   int
		byteLen int
		pixels  int
		want    int64
	}{
		{3, 9, 2, 1}, // 0.67 pixels rounds up
		{1, 9, 2, 0}, // 0.22 rounds down
		{9, 9, 2, 2}, // exactly one cycle
		{18, 9, 2, 4},
		{0, 9, 2, 0},
	}
	for _, tt := range tests {
		var c Counter
		c.Add(tt.bytes)
		if got := c.ReadAndReset(tt.byteLen, tt.pixels); got != tt.want {
			t.Errorf("ReadAndReset(%d bytes of %d/%d) = %d, want %d",
				tt.bytes, tt.byteLen, tt.pixels, got, tt.want)
		}
	}
}

func TestCounter_EmptySet(t *testing.T) {
	var c Counter
	c.Add(42)
	if got := c.ReadAndReset(0, 0); got != 0 {
		t.Errorf("ReadAndReset(0,0) = %d, want 0", got)
	}
	// The read consumed the bytes even though the set was empty.
	if got := c.ReadAndReset(100, 10); got != 0 {
		t.Errorf("ReadAndReset() after empty-set read = %d, want 0", got)
	}
}

func TestCounter_ConcurrentAdd(t *testing.T) {
	var c Counter
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Add(3)
			}
		}()
	}
	wg.Wait()
	if got := c.ReadAndReset(1, 1); got != 24000 {
		t.Errorf("ReadAndReset(1,1) = %d, want 24000", got)
	}
}
