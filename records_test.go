package zenodo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

// fakeRecordServer serves one published record with its files and
// counts content fetches per file
type fakeRecordServer struct {
	server   *httptest.Server
	recordID string
	files    map[string]string // key -> content, ordered via keys
	order    []string
	fetches  map[string]int
}

func newFakeRecordServer(recordID string, files [][2]string) *fakeRecordServer {
	f := &fakeRecordServer{
		recordID: recordID,
		files:    map[string]string{},
		fetches:  map[string]int{},
	}
	for _, kv := range files {
		f.files[kv[0]] = kv[1]
		f.order = append(f.order, kv[0])
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

func (f *fakeRecordServer) handle(w http.ResponseWriter, r *http.Request) {
	recordPath := "/api/records/" + f.recordID

	switch {
	case r.URL.Path == recordPath:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"doi":      "10.5281/zenodo." + f.recordID,
			"metadata": map[string]interface{}{"title": "Test record"},
			"links":    map[string]interface{}{"self": f.server.URL + recordPath},
		})

	case r.URL.Path == recordPath+"/files":
		entries := []map[string]interface{}{}
		for _, key := range f.order {
			entries = append(entries, map[string]interface{}{
				"key":      key,
				"checksum": "md5:0123456789abcdef",
				"size":     len(f.files[key]),
				"links": map[string]interface{}{
					"content": f.server.URL + "/api/records/" + f.recordID + "/files/" + key + "/content",
				},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"entries": entries})

	default:
		for _, key := range f.order {
			if r.URL.Path == recordPath+"/files/"+key+"/content" {
				f.fetches[key]++
				w.Header().Set("Content-Type", "application/octet-stream")
				w.Header().Set("Content-Length", fmt.Sprintf("%d", len(f.files[key])))
				w.Write([]byte(f.files[key]))
				return
			}
		}
		http.NotFound(w, r)
	}
}

// TestGetRecord tests record resolution and file listing
func TestGetRecord(t *testing.T) {
	fake := newFakeRecordServer("15", [][2]string{
		{"trajectories.tar.gz", "binary trajectory data"},
		{"analysis.csv", "frame,energy\n"},
	})
	defer fake.server.Close()
	client := newTestClient(t, "", fake.server.URL)

	record, err := client.GetRecord(context.Background(), "15")
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if record.DOI != "10.5281/zenodo.15" {
		t.Errorf("Expected DOI 10.5281/zenodo.15, got %s", record.DOI)
	}
	if record.Title != "Test record" {
		t.Errorf("Expected title 'Test record', got %s", record.Title)
	}
	if len(record.Files) != 2 {
		t.Fatalf("Expected 2 files, got %d", len(record.Files))
	}
	if record.Files[0].Key != "trajectories.tar.gz" {
		t.Errorf("Expected listing order preserved, got %s first", record.Files[0].Key)
	}
	if record.Files[0].Size != int64(len("binary trajectory data")) {
		t.Errorf("Unexpected size %d", record.Files[0].Size)
	}
	if record.Files[0].Checksum != "0123456789abcdef" {
		t.Errorf("Expected checksum without md5 prefix, got %s", record.Files[0].Checksum)
	}
}

// TestGetRecord_NotFound tests the unknown record path
func TestGetRecord_NotFound(t *testing.T) {
	fake := newFakeRecordServer("15", nil)
	defer fake.server.Close()
	client := newTestClient(t, "", fake.server.URL)

	_, err := client.GetRecord(context.Background(), "999")
	notFound, ok := err.(*NotFoundError)
	if !ok {
		t.Fatalf("Expected NotFoundError, got %T: %v", err, err)
	}
	if notFound.ID != "999" {
		t.Errorf("Expected record ID in error, got %s", notFound.ID)
	}
}

// TestDownloadRecord tests fetching all files of a record
func TestDownloadRecord(t *testing.T) {
	fake := newFakeRecordServer("15", [][2]string{
		{"trajectories.tar.gz", "binary trajectory data"},
		{"analysis.csv", "frame,energy\n"},
	})
	defer fake.server.Close()
	client := newTestClient(t, "", fake.server.URL)

	dest := t.TempDir()
	paths, err := client.DownloadRecord(context.Background(), "15", dest, nil)
	if err != nil {
		t.Fatalf("DownloadRecord failed: %v", err)
	}

	want := []string{
		filepath.Join(dest, "trajectories.tar.gz"),
		filepath.Join(dest, "analysis.csv"),
	}
	if len(paths) != 2 || paths[0] != want[0] || paths[1] != want[1] {
		t.Fatalf("Expected paths %v, got %v", want, paths)
	}

	content, err := os.ReadFile(paths[0])
	if err != nil {
		t.Fatalf("Failed to read downloaded file: %v", err)
	}
	if string(content) != "binary trajectory data" {
		t.Errorf("Unexpected content: %q", content)
	}

	// No stray partial files left behind
	entries, _ := os.ReadDir(dest)
	if len(entries) != 2 {
		t.Errorf("Expected exactly 2 files in destination, got %d", len(entries))
	}
}

// TestDownloadRecord_SkipsSameSizeFile tests the idempotence
// optimization: a same-size local file is not re-fetched
func TestDownloadRecord_SkipsSameSizeFile(t *testing.T) {
	fake := newFakeRecordServer("15", [][2]string{
		{"trajectories.tar.gz", "binary trajectory data"},
		{"analysis.csv", "frame,energy\n"},
	})
	defer fake.server.Close()
	client := newTestClient(t, "", fake.server.URL)

	dest := t.TempDir()
	// Pre-place a same-size file for the first entry
	pre := filepath.Join(dest, "trajectories.tar.gz")
	if err := os.WriteFile(pre, bytes.Repeat([]byte("x"), len("binary trajectory data")), 0o644); err != nil {
		t.Fatalf("Failed to pre-place file: %v", err)
	}

	paths, err := client.DownloadRecord(context.Background(), "15", dest, nil)
	if err != nil {
		t.Fatalf("DownloadRecord failed: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("Expected 2 paths, got %d", len(paths))
	}

	if fake.fetches["trajectories.tar.gz"] != 0 {
		t.Errorf("Expected no fetch for the same-size file, got %d", fake.fetches["trajectories.tar.gz"])
	}
	if fake.fetches["analysis.csv"] != 1 {
		t.Errorf("Expected one fetch for the missing file, got %d", fake.fetches["analysis.csv"])
	}

	// The pre-placed file is untouched (size check only, no content verification)
	content, _ := os.ReadFile(pre)
	if string(content) != string(bytes.Repeat([]byte("x"), len("binary trajectory data"))) {
		t.Error("Expected the pre-placed file to be left alone")
	}
}

// TestDownloadRecord_Idempotent tests that a repeated download
// transfers nothing and returns the same file set
func TestDownloadRecord_Idempotent(t *testing.T) {
	fake := newFakeRecordServer("15", [][2]string{
		{"trajectories.tar.gz", "binary trajectory data"},
		{"analysis.csv", "frame,energy\n"},
	})
	defer fake.server.Close()
	client := newTestClient(t, "", fake.server.URL)
	ctx := context.Background()

	dest := t.TempDir()
	first, err := client.DownloadRecord(ctx, "15", dest, nil)
	if err != nil {
		t.Fatalf("First DownloadRecord failed: %v", err)
	}

	second, err := client.DownloadRecord(ctx, "15", dest, nil)
	if err != nil {
		t.Fatalf("Second DownloadRecord failed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("Expected identical path sets, got %v and %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("Path %d differs: %s vs %s", i, first[i], second[i])
		}
	}
	for key, count := range fake.fetches {
		if count != 1 {
			t.Errorf("Expected %s fetched exactly once across both runs, got %d", key, count)
		}
	}
}

// TestDownloadFile tests the single-file download with progress
func TestDownloadFile(t *testing.T) {
	fake := newFakeRecordServer("15", [][2]string{
		{"analysis.csv", "frame,energy\n"},
	})
	defer fake.server.Close()
	client := newTestClient(t, "", fake.server.URL)

	record, err := client.GetRecord(context.Background(), "15")
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}

	var buf bytes.Buffer
	progressCalled := false
	err = client.DownloadFile(context.Background(), record.Files[0].ContentURL, &buf,
		func(transferred, total int64) {
			progressCalled = true
			if total != int64(len("frame,energy\n")) {
				t.Errorf("Expected total %d, got %d", len("frame,energy\n"), total)
			}
		})
	if err != nil {
		t.Fatalf("DownloadFile failed: %v", err)
	}
	if buf.String() != "frame,energy\n" {
		t.Errorf("Unexpected content: %q", buf.String())
	}
	if !progressCalled {
		t.Error("Progress callback was not called")
	}
}
