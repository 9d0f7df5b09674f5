package testutil

// FixedIDGenerator returns the same run ID every time, so golden snapshots
// of decisions are byte-identical across runs.
//
// It satisfies engine.IDGenerator.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator for id. An empty id becomes
// "test-run-default".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedIDGenerator{id: id}
}

// NewID returns the fixed ID.
func (g *FixedIDGenerator) NewID() string {
	return g.id
}
