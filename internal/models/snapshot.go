package models

// Snapshot is the whole-store document persisted to disk. It is replaced
// atomically on every save; a reader of the file never sees a partial write.
type Snapshot struct {
	Lotteries map[string]Lottery `json:"lotteries"`
}

func NewSnapshot() Snapshot {
	return Snapshot{Lotteries: make(map[string]Lottery)}
}
