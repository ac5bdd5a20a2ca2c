package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateFreeRoundTrip(t *testing.T) {
	p := Allocate()
	require.NotNil(t, p)
	assert.Equal(t, uint16(0), p.Length)

	p.Length = 1
	p.Data[0] = 42

	before := GetStats()
	Free(p)
	after := GetStats()

	assert.Equal(t, before.Frees+1, after.Frees)
	assert.Equal(t, before.FreeBytes+1, after.FreeBytes)
	assert.Equal(t, before.FreeBits+BitLength(&Packet{Length: 1}), after.FreeBits)
}

func TestFreeResetsLength(t *testing.T) {
	p := Allocate()
	p.Length = 100
	Free(p)

	q := Allocate()
	assert.Equal(t, uint16(0), q.Length, "a freshly allocated packet must start at length 0")
	Free(q)
}

func TestClone(t *testing.T) {
	p := Allocate()
	p.Length = 4
	copy(p.Data[:4], []byte{1, 2, 3, 4})

	c := Clone(p)
	assert.Equal(t, p.Length, c.Length)
	assert.Equal(t, p.Data[:4], c.Data[:4])

	// Mutating the clone must not affect the original.
	c.Data[0] = 99
	assert.Equal(t, byte(1), p.Data[0])

	Free(p)
	Free(c)
}

func TestBitLength(t *testing.T) {
	cases := []struct {
		length uint16
		want   uint64
	}{
		{0, (12 + 8 + 60 + 4) * 8},
		{60, (12 + 8 + 60 + 4) * 8},
		{64, (12 + 8 + 64 + 4) * 8},
		{1500, (12 + 8 + 1500 + 4) * 8},
	}
	for _, c := range cases {
		p := &Packet{Length: c.length}
		assert.Equal(t, c.want, BitLength(p))
	}
}

func TestPreallocateGrowsFreelist(t *testing.T) {
	Preallocate(2500)

	fl.mu.Lock()
	allocated := fl.allocated
	fl.mu.Unlock()

	assert.GreaterOrEqual(t, allocated, 2500)
}

func TestAllocateUnderEmptyFreelistGrows(t *testing.T) {
	fl.mu.Lock()
	fl.list = fl.list[:0]
	fl.mu.Unlock()

	p := Allocate()
	require.NotNil(t, p)
	Free(p)
}
