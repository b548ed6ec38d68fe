package internal

// QueryType defines the possible queries for the state machine.
type QueryType uint8

const (
	QueryTGet  QueryType = iota // Retrieve a register by key.
	QueryTSize                  // Number of non-empty registers.
)

func (q QueryType) String() string {
	switch q {
	case QueryTGet:
		return "Get"
	case QueryTSize:
		return "Size"
	default:
		return "Unknown"
	}
}

// Query defines the structure for lookup requests (read-only) sent via SyncRead or StaleRead
type Query struct {
	Type QueryType
	Key  string // empty for QueryTSize
}

// QueryResult is the result of a QueryTGet operation; QueryTSize returns an int.
type QueryResult struct {
	Ok    bool
	Value []byte
}
