package chunk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssemblerSingleChunk(t *testing.T) {
	a := NewAssembler("a.go")
	require.NoError(t, a.Add("package a\n", Info{ChunkIndex: 0, ChunkCount: 1, HasMore: false}))
	require.True(t, a.Done())
	content, err := a.Content()
	require.NoError(t, err)
	require.Equal(t, "package a\n", content)
}

func TestAssemblerMultiChunkOrdered(t *testing.T) {
	a := NewAssembler("big.go")
	require.NoError(t, a.Add("part0", Info{ChunkIndex: 0, ChunkCount: 3, HasMore: true, NextChunkIndex: 1}))
	require.False(t, a.Done())
	require.NoError(t, a.Add("part1", Info{ChunkIndex: 1, ChunkCount: 3, HasMore: true, NextChunkIndex: 2}))
	require.NoError(t, a.Add("part2", Info{ChunkIndex: 2, ChunkCount: 3, HasMore: false}))
	require.True(t, a.Done())
	content, err := a.Content()
	require.NoError(t, err)
	require.Equal(t, "part0part1part2", content)
}

func TestAssemblerRejectsOutOfOrder(t *testing.T) {
	a := NewAssembler("x.go")
	err := a.Add("part1", Info{ChunkIndex: 1, ChunkCount: 2, HasMore: true})
	require.Error(t, err)
}

func TestAssemblerRejectsPastCompletion(t *testing.T) {
	a := NewAssembler("x.go")
	require.NoError(t, a.Add("only", Info{ChunkIndex: 0, ChunkCount: 1, HasMore: false}))
	err := a.Add("extra", Info{ChunkIndex: 1, ChunkCount: 1, HasMore: false})
	require.Error(t, err)
}

func TestAssemblerEnforcesMaxChunkIndex(t *testing.T) {
	a := NewAssembler("x.go")
	a.nextWant = MaxChunkIndex
	err := a.Add("part", Info{ChunkIndex: MaxChunkIndex, ChunkCount: MaxChunkIndex + 1, HasMore: true})
	require.Error(t, err)
}
