package model

import (
	"encoding/json"
	"fmt"
)

// RawEventRecord is one versioned chain event as delivered by the archive.
// Args holds the runtime-specific payload for SpecVersion.
type RawEventRecord struct {
	ID           string          `json:"id"`
	BlockNumber  uint64          `json:"block_number"`
	BlockHash    string          `json:"block_hash"`
	IndexInBlock uint32          `json:"index_in_block"`
	Timestamp    uint64          `json:"timestamp"`
	Name         string          `json:"name"`
	SpecVersion  uint32          `json:"spec_version"`
	Args         json.RawMessage `json:"args"`
}

// UnmarshalJSON decodes a RawEventRecord and checks the fields every
// record must carry.
func (r *RawEventRecord) UnmarshalJSON(data []byte) error {
	type Alias RawEventRecord
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.ID == "" {
		return fmt.Errorf("event id is required")
	}
	if a.Name == "" {
		return fmt.Errorf("event name is required")
	}
	*r = RawEventRecord(a)
	return nil
}

func (r RawEventRecord) Meta() EventMeta {
	return EventMeta{
		ID:           r.ID,
		BlockNumber:  r.BlockNumber,
		BlockHash:    r.BlockHash,
		IndexInBlock: r.IndexInBlock,
		Timestamp:    r.Timestamp,
	}
}

func (r RawEventRecord) Sequence() Sequence {
	return r.Meta().Sequence()
}
