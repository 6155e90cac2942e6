// Package chunk reassembles a single generated file from the ordered
// sequence of A3_FILE/B3_FILE contract chunks a cascade step emits when a
// file's content exceeds the configured max_lines per response.
//
// Grounded on the original source's pipeline.py _gen_file_chunks loop: each
// chunk carries a chunking{max_lines,chunk_index,chunk_count,has_more,
// next_chunk_index} block; the cascade's file loop chains requests via
// previous_response_id until has_more is false, and the assembler enforces
// a hard ceiling on the chunk index to guarantee termination against a
// misbehaving model.
package chunk

import (
	"fmt"
)

// MaxChunkIndex bounds how many chunks a single file may be split into
// before the assembler gives up — the spec's 5000-chunk-index guard.
const MaxChunkIndex = 5000

// Info mirrors the chunking{} object embedded in an A3_FILE/B3_FILE
// contract.
type Info struct {
	MaxLines        int  `json:"max_lines"`
	ChunkIndex      int  `json:"chunk_index"`
	ChunkCount      int  `json:"chunk_count"`
	HasMore         bool `json:"has_more"`
	NextChunkIndex  int  `json:"next_chunk_index,omitempty"`
}

// Assembler accumulates ordered chunks for one file path.
type Assembler struct {
	path     string
	received map[int]string
	expected int // ChunkCount once known; 0 until the first chunk arrives
	nextWant int
	done     bool
}

// NewAssembler starts assembly for path.
func NewAssembler(path string) *Assembler {
	return &Assembler{path: path, received: make(map[int]string)}
}

// Add appends a chunk's content. Chunks must arrive in order
// (chunk_index == nextWant) — the Provider is driven via previous_response_id
// chaining so out-of-order delivery indicates a contract violation, not a
// transient reordering to tolerate.
func (a *Assembler) Add(content string, info Info) error {
	if a.done {
		return fmt.Errorf("chunk: %s: received chunk after completion", a.path)
	}
	if info.ChunkIndex != a.nextWant {
		return fmt.Errorf("chunk: %s: expected chunk_index %d, got %d", a.path, a.nextWant, info.ChunkIndex)
	}
	if info.ChunkIndex >= MaxChunkIndex {
		return fmt.Errorf("chunk: %s: exceeded max chunk index %d", a.path, MaxChunkIndex)
	}
	if a.expected == 0 {
		a.expected = info.ChunkCount
	} else if info.ChunkCount != a.expected {
		return fmt.Errorf("chunk: %s: chunk_count changed mid-stream (%d -> %d)", a.path, a.expected, info.ChunkCount)
	}

	a.received[info.ChunkIndex] = content
	a.nextWant++

	if !info.HasMore {
		a.done = true
	}
	return nil
}

// Done reports whether the final chunk (has_more=false) has been received.
func (a *Assembler) Done() bool { return a.done }

// NextIndex is the chunk_index the caller should request next.
func (a *Assembler) NextIndex() int { return a.nextWant }

// Content concatenates all received chunks in order. It errors if assembly
// isn't complete or any index in [0, expected) is missing.
func (a *Assembler) Content() (string, error) {
	if !a.done {
		return "", fmt.Errorf("chunk: %s: assembly incomplete", a.path)
	}
	n := a.nextWant
	if a.expected > n {
		n = a.expected
	}
	var out []byte
	for i := 0; i < n; i++ {
		part, ok := a.received[i]
		if !ok {
			return "", fmt.Errorf("chunk: %s: missing chunk_index %d", a.path, i)
		}
		out = append(out, part...)
	}
	return string(out), nil
}
