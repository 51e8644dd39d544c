package model

import "fmt"

// Sequence orders events within a chain: block height first, then the
// event's index inside the block.
type Sequence struct {
	BlockNumber  uint64 `json:"block_number"`
	IndexInBlock uint32 `json:"index_in_block"`
}

// Compare returns -1, 0 or 1.
func (s Sequence) Compare(other Sequence) int {
	switch {
	case s.BlockNumber < other.BlockNumber:
		return -1
	case s.BlockNumber > other.BlockNumber:
		return 1
	case s.IndexInBlock < other.IndexInBlock:
		return -1
	case s.IndexInBlock > other.IndexInBlock:
		return 1
	default:
		return 0
	}
}

// After reports whether s is strictly later than other.
func (s Sequence) After(other Sequence) bool {
	return s.Compare(other) > 0
}

func (s Sequence) String() string {
	return fmt.Sprintf("%d:%d", s.BlockNumber, s.IndexInBlock)
}

// EventMeta is the context delivered alongside every event payload.
type EventMeta struct {
	ID           string `json:"id"`
	BlockNumber  uint64 `json:"block_number"`
	BlockHash    string `json:"block_hash,omitempty"`
	IndexInBlock uint32 `json:"index_in_block"`
	Timestamp    uint64 `json:"timestamp,omitempty"`
}

func (m EventMeta) Sequence() Sequence {
	return Sequence{BlockNumber: m.BlockNumber, IndexInBlock: m.IndexInBlock}
}

// Cursor is the resumable processing position.
type Cursor struct {
	Sequence
	EventID string `json:"event_id"`
}
