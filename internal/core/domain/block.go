package domain

// BlockEvent is one block arrival delivered by the event source.
type BlockEvent struct {
	Height     uint64
	ShardCount uint32
}
