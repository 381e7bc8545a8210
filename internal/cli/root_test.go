package cli

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rhizome/internal/api"
	"rhizome/internal/model"
	"rhizome/internal/store"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// runCmd executes the root command with args, capturing stdout.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w

	root := newRootCmd()
	root.SetArgs(args)
	runErr := root.Execute()

	w.Close()
	os.Stdout = old
	out, _ := io.ReadAll(r)
	return string(out), runErr
}

func TestPullCommandPrintsPageJSON(t *testing.T) {
	t.Setenv("ROAM_GRAPH", "")
	t.Setenv("ROAM_API_TOKEN", "")
	t.Setenv("ROAM_BASE_URL", "")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/pull") {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				":block/uid":  "02-21-2026",
				":node/title": "February 21st, 2026",
				":block/children": []any{
					map[string]any{
						":block/uid":    "b1",
						":block/string": "hello",
						":block/order":  float64(0),
					},
				},
			},
		})
	}))
	defer srv.Close()

	cfg := writeConfig(t, `
graph:
  name: testgraph
  token: secret
  base_url: `+srv.URL+`
`)

	out, err := runCmd(t, "pull", "02-21-2026", "--config", cfg)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	var page model.Page
	if err := json.Unmarshal([]byte(out), &page); err != nil {
		t.Fatalf("stdout is not page JSON: %v\n%s", err, out)
	}
	if page.Title != "February 21st, 2026" || len(page.Blocks) != 1 || page.Blocks[0].Text != "hello" {
		t.Fatalf("page = %+v", page)
	}
}

func TestPullCommandRejectsBadDate(t *testing.T) {
	t.Setenv("ROAM_API_TOKEN", "secret")
	t.Setenv("ROAM_GRAPH", "g")
	t.Setenv("ROAM_BASE_URL", "")

	cfg := filepath.Join(t.TempDir(), "absent.yaml")
	_, err := runCmd(t, "pull", "--config", cfg, "--date", "21/02/2026")
	if err == nil || !strings.Contains(err.Error(), "bad --date") {
		t.Fatalf("err = %v", err)
	}
}

func TestJournalCommandListsEntries(t *testing.T) {
	t.Setenv("ROAM_API_TOKEN", "secret")
	t.Setenv("ROAM_GRAPH", "g")
	t.Setenv("ROAM_BASE_URL", "")

	statePath := filepath.Join(t.TempDir(), "state.sqlite")
	ctx := context.Background()
	st, err := store.Open(ctx, statePath)
	if err != nil {
		t.Fatal(err)
	}
	id, err := st.JournalAppend(ctx, "root-1", "b1", api.UpdateBlock("b1", "hello"))
	if err != nil {
		t.Fatal(err)
	}
	if err := st.JournalSettle(ctx, id, "confirmed", ""); err != nil {
		t.Fatal(err)
	}
	st.Close()

	cfg := writeConfig(t, `
state:
  path: `+statePath+`
`)
	out, err := runCmd(t, "journal", "--config", cfg)
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	if !strings.Contains(out, "confirmed") || !strings.Contains(out, "update-block") || !strings.Contains(out, "b1") {
		t.Fatalf("output = %q", out)
	}
}
