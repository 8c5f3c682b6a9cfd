package placement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParityIndexRotates(t *testing.T) {
	assert.Equal(t, 0, ParityIndex(0, 4))
	assert.Equal(t, 1, ParityIndex(1, 4))
	assert.Equal(t, 3, ParityIndex(3, 4))
	assert.Equal(t, 0, ParityIndex(4, 4))
}

func TestDataIndicesExcludesParityAscending(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3}, DataIndices(0, 4))
	assert.Equal(t, []int{0, 2, 3}, DataIndices(1, 4))
	assert.Equal(t, []int{0, 1, 3}, DataIndices(2, 4))
	assert.Equal(t, []int{0, 1, 2}, DataIndices(3, 4))
}

func TestDataIndicesDistinctFromParity(t *testing.T) {
	for s := 0; s < 20; s++ {
		parity := ParityIndex(s, 4)
		for _, d := range DataIndices(s, 4) {
			assert.NotEqual(t, parity, d)
		}
	}
}

func TestBlockIDFormat(t *testing.T) {
	assert.Equal(t, "file1_block_0_2", DataBlockID("file1", 0, 2))
	assert.Equal(t, "file1_block_parity_0", ParityBlockID("file1", 0))
}
