package store

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/me/shennong/internal/draft"
	"github.com/me/shennong/pkg/model"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleDraft() draft.Draft {
	d := draft.New("user@example.com")
	d.Channel = 2
	d.Res = ".csv"
	d.Files = []model.UploadRef{
		{RemoteKey: "p/b.wav", Name: "b.wav", Size: 20},
		{RemoteKey: "p/a.wav", Name: "a.wav", Size: 10},
	}
	d.Analyses = map[string]model.AnalysisSelection{
		"mfcc": {
			InitArgs:       map[string]any{"num_ceps": 13.0, "window_type": "povey", "snip_edges": true},
			Postprocessors: []string{"cmvn"},
		},
	}
	return d
}

func TestMigrateIdempotent(t *testing.T) {
	st := testStore(t)
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestDraftRoundTrip(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	got, err := st.GetDraft(ctx)
	if err != nil || got != nil {
		t.Fatalf("GetDraft on empty store = %v, %v", got, err)
	}

	want := sampleDraft()
	if err := st.SaveDraft(ctx, want); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	got, err = st.GetDraft(ctx)
	if err != nil {
		t.Fatalf("GetDraft: %v", err)
	}
	if !reflect.DeepEqual(*got, want) {
		t.Errorf("GetDraft = %+v\nwant %+v", *got, want)
	}

	// Saving again replaces files rather than appending.
	want.Files = want.Files[:1]
	if err := st.SaveDraft(ctx, want); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	got, _ = st.GetDraft(ctx)
	if len(got.Files) != 1 || got.Files[0].Name != "b.wav" {
		t.Errorf("files after resave = %v", got.Files)
	}
}

func TestDraftEmptyCollections(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if err := st.SaveDraft(ctx, draft.Draft{Email: "x@example.com", Channel: 1, Res: ".pkl"}); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	got, err := st.GetDraft(ctx)
	if err != nil {
		t.Fatalf("GetDraft: %v", err)
	}
	if got.Files == nil || got.Analyses == nil {
		t.Errorf("collections should be non-nil: %+v", got)
	}
}

func TestFailures(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	failures := []model.FailedUpload{
		{Name: "big.wav", Path: "/data/big.wav", Size: 60 << 20, Reason: model.FileTooLarge},
		{Name: "net.wav", Path: "/data/net.wav", Size: 1024, Reason: model.UploadFailure, Error: "connection reset"},
	}
	if err := st.ReplaceFailures(ctx, failures); err != nil {
		t.Fatalf("ReplaceFailures: %v", err)
	}

	got, err := st.ListFailures(ctx)
	if err != nil {
		t.Fatalf("ListFailures: %v", err)
	}
	if len(got) != 2 || got[0].Name != "big.wav" || got[1].Error != "connection reset" || got[1].Reason != model.UploadFailure {
		t.Fatalf("ListFailures = %+v", got)
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("created_at not set")
	}

	found, err := st.DeleteFailure(ctx, "big.wav")
	if err != nil || !found {
		t.Fatalf("DeleteFailure = %v, %v", found, err)
	}
	found, _ = st.DeleteFailure(ctx, "big.wav")
	if found {
		t.Error("second delete reported found")
	}

	if err := st.ReplaceFailures(ctx, nil); err != nil {
		t.Fatalf("ReplaceFailures(nil): %v", err)
	}
	if got, _ := st.ListFailures(ctx); len(got) != 0 {
		t.Errorf("failures after clearing = %v", got)
	}
}

func TestSchemaCache(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	body, at, err := st.GetSchema(ctx)
	if err != nil || body != nil || !at.IsZero() {
		t.Fatalf("GetSchema on empty store = %q, %v, %v", body, at, err)
	}

	if err := st.SaveSchema(ctx, []byte(`{"processors":{}}`)); err != nil {
		t.Fatalf("SaveSchema: %v", err)
	}
	body, at, err = st.GetSchema(ctx)
	if err != nil || string(body) != `{"processors":{}}` || at.IsZero() {
		t.Errorf("GetSchema = %q, %v, %v", body, at, err)
	}
}

func TestFileDatabasePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workspace.db")
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := context.Background()

	st, err := NewSQLiteStore(path, logger)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	if err := st.SaveDraft(ctx, sampleDraft()); err != nil {
		t.Fatal(err)
	}
	st.Close()

	st, err = NewSQLiteStore(path, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	got, err := st.GetDraft(ctx)
	if err != nil || got == nil || got.Email != "user@example.com" {
		t.Errorf("reopened draft = %+v, %v", got, err)
	}
}
