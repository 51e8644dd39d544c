package model

// EventError records an event that could not be normalized or applied.
type EventError struct {
	EventID      string `json:"event_id"`
	BlockNumber  uint64 `json:"block_number"`
	IndexInBlock uint32 `json:"index_in_block"`
	Name         string `json:"name"`
	SpecVersion  uint32 `json:"spec_version"`
	PoolID       string `json:"pool_id,omitempty"`
	Stage        string `json:"stage"`
	Error        string `json:"error"`
	// Line is the 1-based input line, set when the line itself could not be parsed.
	Line int `json:"line,omitempty"`
}

// EventErrorFromRecord fills the record fields of an EventError.
func EventErrorFromRecord(record RawEventRecord, stage string, err error) EventError {
	return EventError{
		EventID:      record.ID,
		BlockNumber:  record.BlockNumber,
		IndexInBlock: record.IndexInBlock,
		Name:         record.Name,
		SpecVersion:  record.SpecVersion,
		Stage:        stage,
		Error:        err.Error(),
	}
}
