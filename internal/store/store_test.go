package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bumpflow/internal/tactic"
)

// createTestStore creates a new in-memory store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func record(runID, branch string) Record {
	return Record{
		RunID:            runID,
		DecisionID:       "d-" + runID,
		CreatedAt:        time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Branch:           branch,
		Head:             "abc123",
		Strategy:         "apply-bump",
		Source:           "default",
		ReferenceCommit:  "def456",
		ReferenceVersion: "1.0.0",
		CurrentVersion:   "1.0.0",
		Bump:             "minor",
		NextVersion:      "1.1.0",
		Tag:              "v1.1.0",
		Payload:          `{"next_version":"1.1.0"}`,
		Outcomes: []StageOutcome{
			{Stage: "reference", Outcome: tactic.Outcome{Tactic: "branch-based", Message: "not applicable"}},
			{Stage: "reference", Outcome: tactic.Outcome{Tactic: "tag-based", Assessed: true, Applied: true, Success: true}},
			{Stage: "classify", Outcome: tactic.Outcome{Tactic: "conventional-commits", Assessed: true, Applied: true, Error: "boom"}},
		},
	}
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("user_version", "2"))
}

func TestOpen_UpgradesVersionOneHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(schemaSQL)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE INDEX idx_decisions_branch ON decisions(branch, seq)`)
	require.NoError(t, err)
	_, err = db.Exec(`PRAGMA user_version = 1`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO decisions
		(run_id, decision_id, created_at, branch, head, strategy, source,
		 reference_commit, reference_version, current_version, bump, payload)
		VALUES ('old-run', 'd-old', '2024-01-01T00:00:00Z', 'main', 'abc', 'apply-bump', 'default',
		 'def', '1.0.0', '1.0.0', 'patch', '{}')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	assert.NoError(t, s.verifyPragma("user_version", "2"))

	got, err := s.GetDecision(context.Background(), "old-run")
	require.NoError(t, err)
	assert.Equal(t, "patch", got.Bump)

	_, err = s.db.Exec(`UPDATE decisions SET bump = 'major' WHERE run_id = 'old-run'`)
	assert.ErrorContains(t, err, "append-only")
}

func TestOpen_RefusesNewerHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`PRAGMA user_version = 99`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported v2")
}

func TestHistory_RejectsRewrites(t *testing.T) {
	s := createTestStore(t)
	require.NoError(t, s.WriteDecision(context.Background(), record("run-1", "main")))

	_, err := s.db.Exec(`UPDATE decisions SET next_version = '9.9.9' WHERE run_id = 'run-1'`)
	assert.ErrorContains(t, err, "append-only")
	_, err = s.db.Exec(`UPDATE tactic_outcomes SET success = 1 WHERE run_id = 'run-1'`)
	assert.ErrorContains(t, err, "append-only")
	_, err = s.db.Exec(`DELETE FROM decisions WHERE run_id = 'run-1'`)
	assert.ErrorContains(t, err, "append-only")

	got, err := s.GetDecision(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", got.NextVersion)
	assert.Len(t, got.Outcomes, 3)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, s.WriteDecision(context.Background(), record("run-1", "main")))
		s.Close()
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	list, err := s.ListDecisions(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestWriteAndGetDecision(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	want := record("run-1", "main")
	require.NoError(t, s.WriteDecision(ctx, want))

	got, err := s.GetDecision(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Seq)
	assert.Equal(t, want.CreatedAt, got.CreatedAt)
	assert.Equal(t, want.Payload, got.Payload)
	assert.Equal(t, want.Outcomes, got.Outcomes)
	assert.Equal(t, "v1.1.0", got.Tag)
}

func TestWriteDecision_DuplicateRunIsNoop(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteDecision(ctx, record("run-1", "main")))

	dup := record("run-1", "main")
	dup.NextVersion = "9.9.9"
	require.NoError(t, s.WriteDecision(ctx, dup))

	got, err := s.GetDecision(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", got.NextVersion)
	assert.Len(t, got.Outcomes, 3)
}

func TestListDecisions_NewestFirstAndFiltered(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	for _, r := range []Record{record("r1", "main"), record("r2", "develop"), record("r3", "main")} {
		require.NoError(t, s.WriteDecision(ctx, r))
	}

	all, err := s.ListDecisions(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "r3", all[0].RunID)
	assert.Equal(t, "r1", all[2].RunID)
	assert.Empty(t, all[0].Outcomes)

	main, err := s.ListDecisions(ctx, Filter{Branch: "main", Limit: 1})
	require.NoError(t, err)
	require.Len(t, main, 1)
	assert.Equal(t, "r3", main[0].RunID)

	none, err := s.ListDecisions(ctx, Filter{Branch: "nope"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestGetDecision_NotFound(t *testing.T) {
	_, err := createTestStore(t).GetDecision(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
