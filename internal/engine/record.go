package engine

import (
	"context"
	"fmt"

	"github.com/roach88/bumpflow/internal/canonical"
	"github.com/roach88/bumpflow/internal/store"
)

// Record converts d into its history row. The payload is the canonical
// JSON of the whole decision.
func (d *Decision) Record() (store.Record, error) {
	payload, err := canonical.Marshal(d)
	if err != nil {
		return store.Record{}, fmt.Errorf("encode decision %s: %w", d.RunID, err)
	}
	return store.Record{
		RunID:            d.RunID,
		DecisionID:       d.DecisionID,
		CreatedAt:        d.CreatedAt,
		Branch:           d.Branch,
		Head:             d.Git.Head,
		Strategy:         string(d.Policy),
		Source:           d.Action.Source,
		ReferenceCommit:  d.Reference.ReferenceCommit,
		ReferenceVersion: d.Reference.ReferenceVersion,
		CurrentVersion:   d.CurrentVersion,
		Bump:             d.Bump.String(),
		NextVersion:      d.NextVersion,
		Tag:              d.Tag,
		ReleaseBranch:    d.ReleaseBranch,
		Payload:          string(payload),
		Outcomes:         d.Outcomes,
	}, nil
}

// Recorder persists decisions.
// Implemented by *store.Store.
type Recorder interface {
	WriteDecision(ctx context.Context, r store.Record) error
}

// Save writes d to rec.
func Save(ctx context.Context, rec Recorder, d *Decision) error {
	r, err := d.Record()
	if err != nil {
		return err
	}
	if err := rec.WriteDecision(ctx, r); err != nil {
		return fmt.Errorf("record decision %s: %w", d.RunID, err)
	}
	return nil
}
