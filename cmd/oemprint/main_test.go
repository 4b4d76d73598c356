package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/mmp/oem/internal/fetch"
	"github.com/mmp/oem/internal/store"
)

const doc = `META_START
OBJECT_NAME = ISS
META_STOP
COMMENT End
2022-02-18T12:00:00.000 6432.338357027310 1810.414013580070 1210.742166479110 -0.28169387337306 4.94773870038605 -5.85002385833392
`

func writeDoc(t *testing.T) string {
	t.Helper()
	fn := filepath.Join(t.TempDir(), "iss.txt")
	if err := os.WriteFile(fn, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	return fn
}

func TestLoadDocuments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ok.txt" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, doc)
	}))
	defer srv.Close()

	fn := writeDoc(t)
	sources := []string{srv.URL + "/ok.txt", fn, srv.URL + "/missing.txt", filepath.Join(t.TempDir(), "nope.txt")}

	docs := loadDocuments(context.Background(), fetch.New(fetch.Config{}), sources)
	if len(docs) != len(sources) {
		t.Fatalf("got %d documents", len(docs))
	}
	for i, d := range docs {
		if d.source != sources[i] {
			t.Errorf("document %d is %q, want %q", i, d.source, sources[i])
		}
	}
	if docs[0].err != nil || docs[0].text != doc {
		t.Errorf("url document: %q %v", docs[0].text, docs[0].err)
	}
	if docs[1].err != nil || docs[1].text != doc {
		t.Errorf("file document: %q %v", docs[1].text, docs[1].err)
	}
	if docs[2].err == nil {
		t.Errorf("expected fetch error for missing URL")
	}
	if docs[3].err == nil {
		t.Errorf("expected error for missing file")
	}
}

func TestIsURL(t *testing.T) {
	for source, want := range map[string]bool{
		"https://example.com/a.txt": true,
		"http://example.com/a.txt":  true,
		"a.txt":                     false,
		"/tmp/http.txt":             false,
	} {
		if got := isURL(source); got != want {
			t.Errorf("isURL(%q) = %v", source, got)
		}
	}
}

func TestRunStoresParsedFiles(t *testing.T) {
	fn := writeDoc(t)
	storeDir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")

	rootCmd.SetArgs([]string{"--config", cfgPath, "--store", storeDir, "--csv", fn})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	st, err := store.Open(storeDir)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	entries, err := st.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Source != fn || entries[0].ObjectName != "ISS" || entries[0].Vectors != 1 {
		t.Errorf("entries = %+v", entries)
	}
}

func TestRunReportsMissingSources(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	missing := filepath.Join(t.TempDir(), "missing.txt")

	rootCmd.SetArgs([]string{"--config", cfgPath, "--store", "", writeDoc(t), missing})
	if err := rootCmd.Execute(); err == nil {
		t.Errorf("expected an error for the missing source")
	}
}
