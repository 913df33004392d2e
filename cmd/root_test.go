package cmd

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0-chirag-s/sitecrafter/api"
	"github.com/0-chirag-s/sitecrafter/internal/journal"
	"github.com/0-chirag-s/sitecrafter/internal/mount"
	"github.com/0-chirag-s/sitecrafter/internal/tree"
)

func newRootCmd() *cobra.Command {
	cmd := baseRootCmd()
	configureRootFlags(cmd)
	return cmd
}

// runRoot executes args against a fresh command tree and returns stdout.
func runRoot(t *testing.T, sub *cobra.Command, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	cmd.AddCommand(sub)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	args = append(args, "--"+logFileFlagName, filepath.Join(t.TempDir(), "test.log"))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeActions(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

const firstBatch = `{"actions":[
	{"type":"file","filePath":"src/App.tsx","code":"export default function App() {}"},
	{"type":"shell","code":"npm install"}
]}`

const secondBatch = `{"actions":[
	{"type":"file","filePath":"index.html","code":"<html></html>"},
	{"type":"file","filePath":"src/App.tsx","code":"export default function App() { return null }"}
]}`

func TestConfigConstants(t *testing.T) {
	assert.Equal(t, "sitecrafter", configBaseName)
	assert.Equal(t, "sitecrafter.yaml", configFileName)
	assert.Equal(t, "SITECRAFTER", envPrefix)
	assert.Equal(t, "reconcile.sweep", sweepConfigKey)
	assert.Equal(t, "actions.selector", selectorConfigKey)
	assert.Equal(t, "export.format_go", formatGoConfigKey)
	assert.Equal(t, "serve.writable", writableConfigKey)
	assert.Equal(t, "journal.path", journalConfigKey)
}

func TestParseSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"-4", slog.LevelDebug},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseSlogLevel(tt.in, slog.LevelInfo))
		})
	}
}

func TestWriteDescriptor(t *testing.T) {
	desc := api.NewDescriptor()
	desc.Set("b.txt", api.FileEntry("b"))
	desc.Set("a.txt", api.FileEntry("a"))

	var buf bytes.Buffer
	require.NoError(t, writeDescriptor(&buf, desc, "json"))
	assert.JSONEq(t, `{"b.txt":{"file":{"contents":"b"}},"a.txt":{"file":{"contents":"a"}}}`, buf.String())

	buf.Reset()
	require.NoError(t, writeDescriptor(&buf, desc, "yaml"))
	assert.Equal(t, "b.txt:\n  file:\n    contents: b\na.txt:\n  file:\n    contents: a\n", buf.String())

	assert.Error(t, writeDescriptor(&buf, desc, "xml"))
}

func TestRenderTreeTable(t *testing.T) {
	tr := tree.New()
	_, err := tr.UpsertFile("src/App.tsx", "app")
	require.NoError(t, err)
	_, err = tr.UpsertFile("index.html", "<html></html>")
	require.NoError(t, err)

	out, err := renderTreeTable(tr)
	require.NoError(t, err)
	assert.Contains(t, out, "src/")
	assert.Contains(t, out, "src/App.tsx")
	assert.Contains(t, out, "folder")
	assert.Contains(t, strings.ToUpper(out), "TOTAL FILES 2")
	assert.Less(t, bytes.Index([]byte(out), []byte("src/App.tsx")), bytes.Index([]byte(out), []byte("index.html")))
}

func TestBuildCmd(t *testing.T) {
	dir := t.TempDir()
	f1 := writeActions(t, dir, "1.json", firstBatch)
	f2 := writeActions(t, dir, "2.json", secondBatch)
	outDir := filepath.Join(dir, "site")

	out, err := runRoot(t, newBuildCmd(), "build", f1, f2, "--out", outDir)
	require.NoError(t, err)

	var desc api.Descriptor
	require.NoError(t, json.Unmarshal([]byte(out), &desc))
	assert.Equal(t, []string{"src", "index.html"}, desc.Names())

	data, err := os.ReadFile(filepath.Join(outDir, "src", "App.tsx"))
	require.NoError(t, err)
	assert.Equal(t, "export default function App() { return null }", string(data))
}

func TestBuildCmd_ConflictIsReported(t *testing.T) {
	dir := t.TempDir()
	f1 := writeActions(t, dir, "1.json", firstBatch)
	f2 := writeActions(t, dir, "2.json", `{"actions":[{"type":"file","filePath":"src","code":"x"}]}`)

	out, err := runRoot(t, newBuildCmd(), "build", f1, f2)
	require.Error(t, err)
	assert.ErrorIs(t, err, tree.ErrKindConflict)
	assert.Contains(t, out, "App.tsx", "the descriptor is still printed")
}

func TestBuildCmd_BadSweep(t *testing.T) {
	f := writeActions(t, t.TempDir(), "1.json", firstBatch)
	_, err := runRoot(t, newBuildCmd(), "build", f, "--sweep", "sometimes")
	assert.ErrorContains(t, err, "unknown sweep mode")
}

func TestLsCmd(t *testing.T) {
	f := writeActions(t, t.TempDir(), "1.json", secondBatch)
	out, err := runRoot(t, newLsCmd(), "ls", f)
	require.NoError(t, err)
	assert.Contains(t, out, "index.html")
	assert.Contains(t, out, "src/App.tsx")
}

func TestBuildThenReplay(t *testing.T) {
	dir := t.TempDir()
	f1 := writeActions(t, dir, "1.json", firstBatch)
	f2 := writeActions(t, dir, "2.json", secondBatch)
	dbPath := filepath.Join(dir, "journal.db")

	built, err := runRoot(t, newBuildCmd(), "build", f1, f2, "--journal", dbPath, "--session", "s1")
	require.NoError(t, err)

	j, err := journal.Open(dbPath)
	require.NoError(t, err)
	sessions, err := j.Sessions(t.Context())
	require.NoError(t, err)
	require.NoError(t, j.Close())
	assert.Equal(t, []string{"s1"}, sessions)

	replayed, err := runRoot(t, newReplayCmd(), "replay", "s1", "--journal", dbPath)
	require.NoError(t, err)
	assert.JSONEq(t, built, replayed)

	listed, err := runRoot(t, newReplayCmd(), "replay", "--list", "--journal", dbPath)
	require.NoError(t, err)
	assert.Equal(t, "s1\n", listed)
}

func TestReplayCmd_Errors(t *testing.T) {
	_, err := runRoot(t, newReplayCmd(), "replay", "s1", "--journal", "")
	assert.ErrorIs(t, err, errNoJournal)

	dbPath := filepath.Join(t.TempDir(), "journal.db")
	_, err = runRoot(t, newReplayCmd(), "replay", "missing", "--journal", dbPath)
	assert.ErrorContains(t, err, "nothing recorded")
}

func TestStartMetricsServer(t *testing.T) {
	srv, err := startMetricsServer("127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = srv.Close() }()

	resp, err := http.Get("http://" + srv.Addr + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBuildSandbox(t *testing.T) {
	sb, err := buildSandbox(t.Context(), "", "s1")
	require.NoError(t, err)
	assert.Nil(t, sb)

	sb, err = buildSandbox(t.Context(), t.TempDir(), "s1")
	require.NoError(t, err)
	assert.IsType(t, &mount.FSSandbox{}, sb)
}
