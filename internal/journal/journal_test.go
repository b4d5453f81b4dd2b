package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournalRoundTrip(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	id, err := j.Begin(ctx, "create")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	resources := []Resource{
		{Kind: "instance", ID: "i-0001"},
		{Kind: "volume", ID: "vol-0001"},
		{Kind: "alarm", ID: "web-1-idle-shutdown"},
	}
	if err := j.Finish(ctx, id, OutcomeProvisioned, nil, resources); err != nil {
		t.Fatalf("finish: %v", err)
	}

	runs, err := j.History(ctx, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	r := runs[0]
	if r.ID != id || r.Action != "create" || r.Outcome != OutcomeProvisioned || r.Error != "" {
		t.Fatalf("unexpected run: %+v", r)
	}
	if len(r.Resources) != 3 || r.Resources[0].ID != "i-0001" {
		t.Fatalf("unexpected resources: %+v", r.Resources)
	}
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		t.Fatalf("timestamps not recorded: %+v", r)
	}
}

func TestJournalRecordsFailure(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	id, err := j.Begin(ctx, "create")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	cause := errors.New("capacity exceeded")
	if err := j.Finish(ctx, id, OutcomeRolledBack, cause, []Resource{{Kind: "instance", ID: "i-0001"}}); err != nil {
		t.Fatalf("finish: %v", err)
	}

	runs, err := j.History(ctx, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if runs[0].Outcome != OutcomeRolledBack || runs[0].Error != "capacity exceeded" {
		t.Fatalf("failure not recorded: %+v", runs[0])
	}
}

func TestJournalHistoryLimit(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id, err := j.Begin(ctx, "create")
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		if err := j.Finish(ctx, id, OutcomeSkipped, nil, nil); err != nil {
			t.Fatalf("finish: %v", err)
		}
	}
	runs, err := j.History(ctx, 3)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
}
