package store

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), DbFileName))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestAppendAndHistory(t *testing.T) {
	st := openTestStore(t)

	records := []Record{
		{EndpointID: "ep-1", Name: "chandra-ocr", Image: "img:v1", TemplateID: "tpl-1", Action: ActionCreated},
		{EndpointID: "ep-1", Name: "chandra-ocr", Image: "img:v2", TemplateID: "tpl-2", Action: ActionUpdated},
		{EndpointID: "ep-2", Name: "other", Image: "img:v1", Action: ActionCreated},
	}
	for _, r := range records {
		if err := st.Append(r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	hist, err := st.History(0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("len(hist) = %d", len(hist))
	}
	// Newest first.
	if hist[0].EndpointID != "ep-2" || hist[2].Image != "img:v1" {
		t.Fatalf("history order wrong: %+v", hist)
	}
	if hist[0].DeployedAt.IsZero() {
		t.Fatalf("deployed_at not recorded")
	}
}

func TestHistory_Limit(t *testing.T) {
	st := openTestStore(t)
	for i := 0; i < 5; i++ {
		if err := st.Append(Record{EndpointID: "ep-1", Name: "n", Image: "img", Action: ActionUpdated}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	hist, err := st.History(2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("len(hist) = %d", len(hist))
	}
}

func TestLast(t *testing.T) {
	st := openTestStore(t)

	if r, err := st.Last("chandra-ocr"); err != nil || r != nil {
		t.Fatalf("empty store: r=%v err=%v", r, err)
	}

	older := Record{EndpointID: "ep-1", Name: "chandra-ocr", Image: "img:v1", Action: ActionCreated,
		DeployedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	newer := Record{EndpointID: "ep-1", Name: "chandra-ocr", Image: "img:v2", Action: ActionUpdated,
		DeployedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}
	for _, r := range []Record{older, newer} {
		if err := st.Append(r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	last, err := st.Last("chandra-ocr")
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if last == nil || last.Image != "img:v2" || last.Action != ActionUpdated {
		t.Fatalf("last = %+v", last)
	}
	if !last.DeployedAt.Equal(newer.DeployedAt) {
		t.Fatalf("deployed_at = %v", last.DeployedAt)
	}
}

func TestOpen_Reconnect(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), DbFileName)

	st, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.Append(Record{EndpointID: "ep-1", Name: "n", Image: "img", Action: ActionCreated}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	_ = st.Close()

	st2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = st2.Close() }()

	hist, err := st2.History(0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 1 {
		t.Fatalf("records lost across reopen: %d", len(hist))
	}
}
