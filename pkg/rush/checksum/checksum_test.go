package checksum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIpsumAllOnes(t *testing.T) {
	data := []byte{0xff, 0xff, 0xff, 0xff, 0xff}
	want := []uint16{0xffff, 255, 0, 255, 0, 255}
	for length, w := range want {
		assert.Equal(t, w, Ipsum(data, length, 0), "length=%d", length)
	}
}

func TestIpsumAllZero(t *testing.T) {
	data := []byte{0, 0, 0, 0, 0}
	for length := 0; length <= len(data); length++ {
		assert.Equal(t, uint16(0xffff), Ipsum(data, length, 0), "length=%d", length)
	}
}

func TestIpsumEmpty(t *testing.T) {
	assert.Equal(t, uint16(0xffff), Ipsum(nil, 0, 0))
}

func TestIpsumVerifyInPlace(t *testing.T) {
	data := []byte{42, 41, 40, 39, 38, 37, 36, 35, 34, 33, 32, 31, 30, 29, 28}
	sum := Ipsum(data, len(data), 0)
	assert.Equal(t, uint16(0), Ipsum(data, len(data), sum),
		"feeding the checksum back in as the seed must verify to zero")
}

func TestIpsumChaining(t *testing.T) {
	data := []byte{0xff, 0xff, 0xff, 0xff, 0xff}
	whole := Ipsum(data, len(data), 0)

	part1, part2 := data[:2], data[2:]
	sum1 := Ipsum(part1, len(part1), 0)
	chained := Ipsum(part2, len(part2), ^sum1)

	assert.Equal(t, whole, chained)
}

func TestHtonsNtohsRoundTrip(t *testing.T) {
	v := uint16(0x1234)
	assert.Equal(t, v, Ntohs(Htons(v)))
	assert.Equal(t, uint16(0x3412), Htons(v))
}
