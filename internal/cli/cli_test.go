package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/dossier/internal/agents"
	"github.com/mesh-intelligence/dossier/internal/recognition"
	"github.com/mesh-intelligence/dossier/internal/songs"
	"github.com/mesh-intelligence/dossier/internal/sqlite"
	"github.com/mesh-intelligence/dossier/internal/storetest"
	"github.com/mesh-intelligence/dossier/pkg/types"
)

// workspace is a config and data directory pair for one test.
type workspace struct {
	t    *testing.T
	dir  string
	args []string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	for _, k := range []string{"GEMINI_API_KEY", "DOSSIER_GEMINI_API_KEY", "ACR_HOST", "ACR_ACCESS_KEY", "ACR_ACCESS_SECRET", "DOSSIER_DATA_DIR"} {
		t.Setenv(k, "")
	}
	t.Setenv("DOSSIER_LOG_LEVEL", "error")
	dir := t.TempDir()
	return &workspace{
		t:    t,
		dir:  dir,
		args: []string{"--config-dir", filepath.Join(dir, "cfg"), "--data-dir", filepath.Join(dir, "data")},
	}
}

// run executes one dossier invocation and returns its stdout.
func (w *workspace) run(args ...string) (string, error) {
	w.t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append(append([]string{}, w.args...), args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (w *workspace) mustRun(args ...string) string {
	w.t.Helper()
	out, err := w.run(args...)
	require.NoError(w.t, err, "dossier %v", args)
	return out
}

func (w *workspace) runJSON(v any, args ...string) {
	w.t.Helper()
	out := w.mustRun(append([]string{"--json"}, args...)...)
	require.NoError(w.t, json.Unmarshal([]byte(out), v), out)
}

func (w *workspace) register(name, email string) {
	w.t.Helper()
	w.mustRun("agent", "register", "--name", name, "--password", "s3cret!", "--email", email)
}

func TestVersion(t *testing.T) {
	w := newWorkspace(t)
	out := w.mustRun("version")
	assert.Contains(t, out, "dossier v"+Version)
	assert.Contains(t, out, modulePath)
	assert.Contains(t, out, fmt.Sprintf("schema: %d", sqlite.SchemaVersion))
}

func TestInitCreatesStoreAndSeeds(t *testing.T) {
	w := newWorkspace(t)

	var res initResult
	w.runJSON(&res, "init", "--seed")
	assert.Equal(t, 4, res.Seeded)
	assert.Equal(t, types.BackendSQLite, res.Backend)
	assert.FileExists(t, filepath.Join(w.dir, "cfg", "config.yaml"))
	assert.FileExists(t, filepath.Join(w.dir, "data", types.DefaultStoreName+".db"))

	// Seeding twice adds nothing.
	w.runJSON(&res, "init", "--seed")
	assert.Equal(t, 0, res.Seeded)

	var board []rankEntry
	w.runJSON(&board, "leaderboard")
	require.Len(t, board, 4)
	assert.Equal(t, "Gl1tch", board[0].Name)
	assert.Equal(t, 8450, board[0].PeacePoints)
	assert.Equal(t, 1, board[0].Rank)
}

func TestAgentLifecycle(t *testing.T) {
	w := newWorkspace(t)
	w.register("Gl1tch2", "a@b.com")

	var shown agentView
	w.runJSON(&shown, "agent", "show", "GL1TCH2")
	assert.Equal(t, "Gl1tch2", shown.Name)
	assert.Equal(t, "a@b.com", shown.Email)
	assert.Empty(t, shown.Missions)

	_, err := w.run("agent", "register", "--name", "gl1tch2", "--password", "s3cret!", "--email", "c@d.com")
	assert.ErrorIs(t, err, agents.ErrHandleTaken)
	assert.Equal(t, exitUserError, exitCode(err))

	out := w.mustRun("agent", "login", "--name", "gl1tch2", "--password", "s3cret!")
	assert.Contains(t, out, "Welcome back, Agent Gl1tch2")

	_, err = w.run("agent", "login", "--name", "gl1tch2", "--password", "wrong!!")
	assert.ErrorIs(t, err, agents.ErrInvalidCredentials)

	out = w.mustRun("agent", "recover", "Gl1tch2")
	assert.Contains(t, out, "Recovery signal acknowledged for Agent Gl1tch2")

	w.mustRun("agent", "reset", "--name", "Gl1tch2", "--password", "n3wpass")
	w.mustRun("agent", "login", "--name", "Gl1tch2", "--password", "n3wpass")
}

func TestAgentRecoverFailures(t *testing.T) {
	w := newWorkspace(t)
	w.mustRun("init", "--seed")

	_, err := w.run("agent", "recover", "nobody")
	assert.EqualError(t, err, "Agent handle not found in database.")

	// Founding agents have no recovery contact.
	_, err = w.run("agent", "recover", "echo")
	assert.EqualError(t, err, "CRITICAL ERROR: No recovery contact on file. Passcode is unrecoverable.")

	_, err = w.run("agent", "reset", "--name", "echo", "--password", "n3wpass")
	assert.ErrorIs(t, err, agents.ErrUnrecoverable)
}

func TestRegisterValidation(t *testing.T) {
	w := newWorkspace(t)
	tests := []struct {
		name string
		args []string
	}{
		{"short handle", []string{"--name", "ab", "--password", "s3cret!", "--email", "a@b.com"}},
		{"short passcode", []string{"--name", "abc", "--password", "123", "--email", "a@b.com"}},
		{"mismatch", []string{"--name", "abc", "--password", "s3cret!", "--confirm", "other!!", "--email", "a@b.com"}},
		{"no contact", []string{"--name", "abc", "--password", "s3cret!"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.run(append([]string{"agent", "register"}, tt.args...)...)
			assert.ErrorIs(t, err, types.ErrValidation)
		})
	}
}

func TestMissionFlow(t *testing.T) {
	w := newWorkspace(t)
	w.register("Nova", "nova@example.com")

	var m types.Mission
	w.runJSON(&m, "mission", "assign", "--agent", "nova", "--description", "Call an old friend.", "--points", "50")
	assert.Contains(t, m.ID, agents.MissionPrefixChat+"-")
	assert.Equal(t, types.MissionAssigned, m.Status)

	_, err := w.run("mission", "submit", "--agent", "nova", "--mission", m.ID, "--report", "   ")
	assert.ErrorIs(t, err, types.ErrEmptySubmission)

	var res submitResult
	w.runJSON(&res, "mission", "submit", "--agent", "nova", "--mission", m.ID, "--report", "did it")
	assert.Equal(t, types.MissionCompleted, res.Mission.Status)
	assert.Equal(t, "did it", res.Mission.SubmissionText)
	assert.Equal(t, types.AutoReviewComment, res.Mission.ReviewComment)
	assert.Equal(t, 50, res.PeacePoints)

	var missions []types.Mission
	w.runJSON(&missions, "mission", "list", "--agent", "Nova")
	require.Len(t, missions, 1)
	assert.Equal(t, types.MissionCompleted, missions[0].Status)

	out := w.mustRun("leaderboard", "--agent", "nova")
	assert.Contains(t, out, "Nova")
	assert.Contains(t, out, "<- you")
}

// fakeGemini answers every generateContent call with a matrix of n segments.
func fakeGemini(t *testing.T, n int) {
	t.Helper()
	matrix := storetest.Matrix(t, n)
	text, err := json.Marshal(matrix)
	require.NoError(t, err)
	body, err := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{"parts": []any{map[string]any{"text": string(text)}}},
		}},
	})
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("DOSSIER_GEMINI_BASE_URL", srv.URL)
}

func TestSongAndClueFlow(t *testing.T) {
	w := newWorkspace(t)
	fakeGemini(t, 3)
	w.register("Nova", "nova@example.com")

	var song types.RecognizedSong
	w.runJSON(&song, "song", "register", "--id", "acr_split", "--title", "Split", "--artist", "Eddie", "--duration", "2:05")
	assert.Equal(t, 3, song.ClueMatrix.Segments())
	assert.True(t, song.IsAvailableToAgents)

	_, err := w.run("song", "register", "--id", "acr_split", "--title", "Split", "--artist", "Eddie", "--duration", "2:05")
	assert.ErrorIs(t, err, types.ErrDuplicateKey)

	var reveal revealResult
	w.runJSON(&reveal, "clue", "reveal", "acr_split", "--at", "75", "--category", "know", "--subcategory", "racism")
	assert.Equal(t, 1, reveal.Segment)
	assert.Equal(t, "1:00-1:59", reveal.Label)
	want, ok := song.ClueMatrix.Clue(types.CategoryKnow, types.SubcategoryRacism, 1)
	require.True(t, ok)
	assert.Equal(t, want, reveal.Clue)

	var m types.Mission
	w.runJSON(&m, "clue", "accept", "--agent", "nova", "--song", "acr_split", "--segment", "1", "--category", "KNOW", "--subcategory", "Racism")
	assert.Contains(t, m.ID, agents.MissionPrefixClue+"-")
	assert.Equal(t, types.CategoryKnow, m.Category)
	assert.Equal(t, types.SubcategoryRacism, m.Subcategory)

	w.mustRun("song", "availability", "acr_split", "--available=false")
	_, err = w.run("clue", "reveal", "acr_split", "--segment", "0", "--category", "KNOW", "--subcategory", "Racism")
	assert.ErrorIs(t, err, songs.ErrSongUnavailable)

	var edited types.RecognizedSong
	w.runJSON(&edited, "song", "edit", "acr_split", "--new-id", "acr_split_v2", "--title", "Split (Live)")
	assert.Equal(t, "acr_split_v2", edited.ID)
	assert.Equal(t, "Split (Live)", edited.Title)
	assert.Equal(t, "Eddie", edited.Artist)
	assert.Equal(t, song.ClueMatrix, edited.ClueMatrix)

	var list []songSummary
	w.runJSON(&list, "song", "list")
	require.Len(t, list, 1)
	assert.Equal(t, "acr_split_v2", list[0].ID)

	w.mustRun("song", "regen", "acr_split_v2")
	out := w.mustRun("song", "show", "acr_split_v2", "--matrix")
	assert.Contains(t, out, "ALTERNATIVE")
	assert.Contains(t, out, "2:00-2:59")

	w.mustRun("song", "delete", "acr_split_v2")
	w.mustRun("song", "delete", "acr_split_v2")
	w.runJSON(&list, "song", "list")
	assert.Empty(t, list)
}

func TestSongRegisterWithoutGenerator(t *testing.T) {
	w := newWorkspace(t)
	_, err := w.run("song", "register", "--id", "acr_x", "--title", "X", "--artist", "Y", "--duration", "3:00")
	assert.ErrorIs(t, err, types.ErrExternalService)
	assert.Equal(t, exitSysError, exitCode(err))

	var list []songSummary
	w.runJSON(&list, "song", "list")
	assert.Empty(t, list, "nothing persisted when generation fails")

	_, err = w.run("song", "register", "--id", "acr_x", "--title", "X", "--artist", "Y", "--duration", "3:75")
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestExportImport(t *testing.T) {
	w := newWorkspace(t)
	w.mustRun("init", "--seed")
	w.register("Nova", "nova@example.com")
	snap := filepath.Join(w.dir, "snap")

	var stats sqlite.SnapshotStats
	w.runJSON(&stats, "export", snap)
	assert.Equal(t, 5, stats.Written[types.AgentsCollection])
	assert.FileExists(t, sqlite.SnapshotPath(snap, types.AgentsCollection))

	other := newWorkspace(t)
	other.runJSON(&stats, "import", snap)
	assert.Equal(t, 5, stats.Written[types.AgentsCollection])
	other.mustRun("agent", "login", "--name", "nova", "--password", "s3cret!")

	clash := newWorkspace(t)
	clash.register("NOVA", "clash@example.com")
	var clashStats sqlite.SnapshotStats
	clash.runJSON(&clashStats, "import", snap)
	assert.Equal(t, 4, clashStats.Written[types.AgentsCollection])
	assert.Equal(t, 1, clashStats.Skipped[types.AgentsCollection])

	var shown agentView
	clash.runJSON(&shown, "agent", "show", "nova")
	assert.Equal(t, "NOVA", shown.Name)
	assert.Equal(t, "clash@example.com", shown.Email)
}

func TestRecognizeNotConfigured(t *testing.T) {
	w := newWorkspace(t)
	sample := filepath.Join(w.dir, "clip.webm")
	require.NoError(t, os.WriteFile(sample, []byte("audio"), 0o644))

	_, err := w.run("recognize", sample)
	assert.ErrorIs(t, err, recognition.ErrNotConfigured)
}

type fakeIdentifier struct {
	match recognition.Match
	err   error
}

func (f fakeIdentifier) Identify(context.Context, []byte, string) (recognition.Match, error) {
	return f.match, f.err
}

func TestIdentify(t *testing.T) {
	w := newWorkspace(t)
	fakeGemini(t, 3)
	w.mustRun("song", "register", "--id", "acr_split", "--title", "Split", "--artist", "Eddie", "--duration", "2:05")

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	f := &rootFlags{configDir: filepath.Join(w.dir, "cfg"), dataDir: filepath.Join(w.dir, "data")}
	a, err := f.open(cmd)
	require.NoError(t, err)
	defer a.close()

	tests := []struct {
		name string
		id   recognition.Identifier
		want recognizeResult
		err  error
	}{
		{
			name: "registered signal",
			id:   fakeIdentifier{match: recognition.Match{Title: "Split", Artist: "Eddie", ACRID: "acr_split", Offset: 130}},
			want: recognizeResult{Matched: true, Title: "Split", Artist: "Eddie", ACRID: "acr_split", Timestamp: 130, Segment: 2, Registered: true, Available: true},
		},
		{
			name: "unregistered signal",
			id:   fakeIdentifier{match: recognition.Match{Title: "Other", ACRID: "acr_other", Offset: 10}},
			want: recognizeResult{Matched: true, Title: "Other", ACRID: "acr_other", Timestamp: 10},
		},
		{
			name: "no match",
			id:   fakeIdentifier{err: recognition.ErrNoMatch},
		},
		{
			name: "service failure",
			id:   fakeIdentifier{err: fmt.Errorf("%w: boom", types.ErrExternalService)},
			err:  types.ErrExternalService,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := identify(cmd, a, tt.id, []byte("x"), "x.webm")
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestServeMux(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newServeMux(nil, reg, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(nil))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, exitSuccess},
		{fmt.Errorf("open: %w", types.ErrStoreUnavailable), exitSysError},
		{types.ErrStoreClosed, exitSysError},
		{fmt.Errorf("%w: gemini", types.ErrExternalService), exitSysError},
		{agents.ErrHandleTaken, exitUserError},
		{agents.ErrPasswordTooShort, exitUserError},
		{errors.New("anything else"), exitUserError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exitCode(tt.err), "%v", tt.err)
	}
}
