package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatMulFamily(t *testing.T) {
	a, err := FromRows([][]float32{{1, 2}, {3, 4}, {5, 6}}) // 3×2
	require.NoError(t, err)
	b, err := FromRows([][]float32{{1, 0, 2}, {0, 1, 3}}) // 2×3
	require.NoError(t, err)

	ab := MatMul(a, b)
	assert.Equal(t, []float32{1, 2, 8, 3, 4, 18, 5, 6, 28}, ab.Data)

	// aᵀ·a = [[35,44],[44,56]]
	ata := New(2, 2)
	MatMulTransA(ata, a, a)
	assert.Equal(t, []float32{35, 44, 44, 56}, ata.Data)

	// a·aᵀ first row = [5, 11, 17]
	aat := New(3, 3)
	MatMulTransB(aat, a, a)
	assert.Equal(t, []float32{5, 11, 17}, aat.Row(0))
}

func TestHStack(t *testing.T) {
	a, _ := FromRows([][]float32{{1}, {2}})
	b, _ := FromRows([][]float32{{3, 4}, {5, 6}})
	m, err := HStack(a, b)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Cols)
	assert.Equal(t, []float32{1, 3, 4, 2, 5, 6}, m.Data)

	_, err = HStack(a, New(3, 1))
	assert.Error(t, err)
}

func TestFromRowsRagged(t *testing.T) {
	_, err := FromRows([][]float32{{1, 2}, {3}})
	assert.Error(t, err)
}

func TestArgMaxAndSelect(t *testing.T) {
	m, _ := FromRows([][]float32{{0.1, 0.7, 0.2}, {0.5, 0.5, 0}})
	assert.Equal(t, 1, m.ArgMax(0))
	assert.Equal(t, 0, m.ArgMax(1))

	s := m.SelectRows([]int{1, 1, 0})
	assert.Equal(t, 3, s.Rows)
	assert.Equal(t, m.Row(0), s.Row(2))
}
