package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/bumpflow/internal/tactic"
)

// ErrNotFound is returned by GetDecision for an unknown run.
var ErrNotFound = errors.New("decision not found")

// Record is one stored decision.
type Record struct {
	Seq              int64     `json:"seq"`
	RunID            string    `json:"run_id"`
	DecisionID       string    `json:"decision_id"`
	CreatedAt        time.Time `json:"created_at"`
	Branch           string    `json:"branch"`
	Head             string    `json:"head"`
	Strategy         string    `json:"strategy"`
	Source           string    `json:"source"`
	ReferenceCommit  string    `json:"reference_commit"`
	ReferenceVersion string    `json:"reference_version"`
	CurrentVersion   string    `json:"current_version"`
	Bump             string    `json:"bump"`
	NextVersion      string    `json:"next_version,omitempty"`
	Tag              string    `json:"tag,omitempty"`
	ReleaseBranch    string    `json:"release_branch,omitempty"`

	// Payload is the canonical JSON of the full decision.
	Payload string `json:"-"`

	Outcomes []StageOutcome `json:"outcomes,omitempty"`
}

// StageOutcome is a tactic outcome tagged with the pipeline stage that
// produced it.
type StageOutcome struct {
	Stage string `json:"stage"`
	tactic.Outcome
}

// Filter narrows ListDecisions.
type Filter struct {
	Branch string
	Limit  int // zero means 20
}

// WriteDecision appends r and its outcomes in one transaction. Writing the
// same RunID twice is a no-op.
func (s *Store) WriteDecision(ctx context.Context, r Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write decision: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO decisions
		(run_id, decision_id, created_at, branch, head, strategy, source,
		 reference_commit, reference_version, current_version, bump,
		 next_version, tag, release_branch, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`,
		r.RunID, r.DecisionID, r.CreatedAt.UTC().Format(time.RFC3339Nano),
		r.Branch, r.Head, r.Strategy, r.Source,
		r.ReferenceCommit, r.ReferenceVersion, r.CurrentVersion, r.Bump,
		r.NextVersion, r.Tag, r.ReleaseBranch, r.Payload,
	)
	if err != nil {
		return fmt.Errorf("write decision: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tactic_outcomes
		(run_id, stage, ord, tactic, assessed, applied, success, message, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write outcomes: %w", err)
	}
	defer stmt.Close()

	for ord, o := range r.Outcomes {
		if _, err := stmt.ExecContext(ctx, r.RunID, o.Stage, ord, o.Tactic,
			o.Assessed, o.Applied, o.Success, o.Message, o.Error); err != nil {
			return fmt.Errorf("write outcome %s/%s: %w", o.Stage, o.Tactic, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write decision: commit: %w", err)
	}
	return nil
}

const decisionColumns = `seq, run_id, decision_id, created_at, branch, head, strategy, source,
	reference_commit, reference_version, current_version, bump,
	next_version, tag, release_branch, payload`

// ListDecisions returns the newest decisions first, without outcomes.
func (s *Store) ListDecisions(ctx context.Context, f Filter) ([]Record, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + decisionColumns + ` FROM decisions`
	args := []any{}
	if f.Branch != "" {
		query += ` WHERE branch = ?`
		args = append(args, f.Branch)
	}
	query += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return records, nil
}

// GetDecision returns one decision with its outcomes in recorded order.
func (s *Store) GetDecision(ctx context.Context, runID string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+decisionColumns+` FROM decisions WHERE run_id = ?`, runID)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return Record{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT stage, tactic, assessed, applied, success, message, error
		FROM tactic_outcomes
		WHERE run_id = ?
		ORDER BY ord ASC
	`, runID)
	if err != nil {
		return Record{}, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o StageOutcome
		if err := rows.Scan(&o.Stage, &o.Tactic, &o.Assessed, &o.Applied, &o.Success, &o.Message, &o.Error); err != nil {
			return Record{}, fmt.Errorf("scan outcome: %w", err)
		}
		r.Outcomes = append(r.Outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return Record{}, fmt.Errorf("iterate outcomes: %w", err)
	}
	return r, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var r Record
	var created string
	err := row.Scan(&r.Seq, &r.RunID, &r.DecisionID, &created, &r.Branch, &r.Head, &r.Strategy, &r.Source,
		&r.ReferenceCommit, &r.ReferenceVersion, &r.CurrentVersion, &r.Bump,
		&r.NextVersion, &r.Tag, &r.ReleaseBranch, &r.Payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("scan decision: %w", err)
	}
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		r.CreatedAt = ts
	}
	return r, nil
}
