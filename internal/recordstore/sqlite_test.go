package recordstore

import (
	"context"
	"errors"
	"testing"
)

func TestSQLiteRoundTrip(t *testing.T) {
	store, err := OpenSQLite(t.TempDir())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	if _, err := store.Load(ctx, "credentials"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load on empty store: err = %v, want ErrNotFound", err)
	}

	if err := store.Save(ctx, "credentials", []byte(`[{"id":"a"}]`)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx, "credentials")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != `[{"id":"a"}]` {
		t.Errorf("Load = %s, want original payload", got)
	}

	// Save replaces the whole record
	if err := store.Save(ctx, "credentials", []byte(`[]`)); err != nil {
		t.Fatalf("Save (replace): %v", err)
	}
	got, err = store.Load(ctx, "credentials")
	if err != nil {
		t.Fatalf("Load after replace: %v", err)
	}
	if string(got) != `[]` {
		t.Errorf("Load after replace = %s, want []", got)
	}
}

func TestSQLiteRecordsIndependent(t *testing.T) {
	store, err := OpenSQLite(t.TempDir())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Save(ctx, "credentials", []byte(`1`)); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, "project", []byte(`2`)); err != nil {
		t.Fatal(err)
	}

	a, _ := store.Load(ctx, "credentials")
	b, _ := store.Load(ctx, "project")
	if string(a) != "1" || string(b) != "2" {
		t.Errorf("records leaked into each other: %s / %s", a, b)
	}
}

func TestSQLiteReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := OpenSQLite(dir)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := store.Save(ctx, "project", []byte(`{"script":"hello"}`)); err != nil {
		t.Fatal(err)
	}
	store.Close()

	store, err = OpenSQLite(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()

	got, err := store.Load(ctx, "project")
	if err != nil {
		t.Fatalf("Load after reopen: %v", err)
	}
	if string(got) != `{"script":"hello"}` {
		t.Errorf("record did not survive reopen: %s", got)
	}
}
