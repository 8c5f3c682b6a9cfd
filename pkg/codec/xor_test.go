package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestXorBasic(t *testing.T) {
	a := []byte{0x01, 0x02, 0x03}
	b := []byte{0x04, 0x05, 0x06}
	c := []byte{0x07, 0x08, 0x09}

	got := Xor(a, b, c)
	want := []byte{0x01 ^ 0x04 ^ 0x07, 0x02 ^ 0x05 ^ 0x08, 0x03 ^ 0x06 ^ 0x09}
	assert.Equal(t, want, got)
}

func TestXorEmptyInput(t *testing.T) {
	assert.Equal(t, []byte{}, Xor())
}

func TestXorZeroPadsShorterOperands(t *testing.T) {
	a := []byte{0xff, 0xff, 0xff}
	b := []byte{0x0f}

	got := Xor(a, b)
	want := []byte{0xff ^ 0x0f, 0xff, 0xff}
	assert.Equal(t, want, got)
}

func TestXorIsCommutativeAndAssociative(t *testing.T) {
	a := []byte{1, 2, 3, 4}
	b := []byte{5, 6, 7, 8}
	c := []byte{9, 10, 11, 12}

	assert.Equal(t, Xor(a, b, c), Xor(c, b, a))
	assert.Equal(t, Xor(Xor(a, b), c), Xor(a, Xor(b, c)))
}

func TestXorSingleMissingReconstruction(t *testing.T) {
	d0 := []byte{0x10, 0x20, 0x30}
	d1 := []byte{0x01, 0x02, 0x03}
	parity := Xor(d0, d1)

	// Reconstruct d1 from d0 and parity.
	reconstructed := Xor(d0, parity)
	assert.Equal(t, d1, reconstructed)
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, []byte{1, 2, 0, 0}, PadRight([]byte{1, 2}, 4))
	assert.Equal(t, []byte{1, 2, 3}, PadRight([]byte{1, 2, 3}, 3))
}
