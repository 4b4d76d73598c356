package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/mmp/oem"
)

const doc = `META_START
OBJECT_NAME = ISS
OBJECT_ID = 1998-067-A
META_STOP
COMMENT TRAJECTORY test segment
COMMENT End
2022-02-18T12:00:00.000 6432.338357027310 1810.414013580070 1210.742166479110 -0.28169387337306 4.94773870038605 -5.85002385833392
2022-02-18T12:04:00.000 6130.995481102160 2917.381297198860 -220.384941250909 -2.21387475002967 4.22061672892853 -6.00280929188885
`

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesDatabase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(filepath.Join(dir, "oem.db")); err != nil {
		t.Errorf("database file was not created: %v", err)
	}
}

func TestSaveLoad(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	eph, err := oem.Parse([]byte(doc), "iss.oem", nil)
	if err != nil {
		t.Fatal(err)
	}

	id, err := s.Save(ctx, "iss.oem", eph)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id == "" {
		t.Fatal("empty id")
	}

	got, err := s.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, eph) {
		t.Errorf("loaded record differs:\n got %+v\nwant %+v", got, eph)
	}

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].ID != id || entries[0].ObjectName != "ISS" || entries[0].Vectors != 2 {
		t.Errorf("entries = %+v", entries)
	}
}

func TestSaveEmptyRecord(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	id, err := s.Save(ctx, "empty", &oem.Ephemeris{})
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Vectors) != 0 || got.MetadataText != "" {
		t.Errorf("got %+v", got)
	}
}

func TestLoadDeleteUnknown(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if _, err := s.Load(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load: expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete: expected ErrNotFound, got %v", err)
	}
}

func TestDeleteRemovesVectors(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	eph, _ := oem.Parse([]byte(doc), "iss.oem", nil)
	id, err := s.Save(ctx, "iss.oem", eph)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM state_vectors WHERE ephemeris_id = ?`, id).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("%d state vectors left after delete", n)
	}
}
