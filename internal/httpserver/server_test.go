package httpserver

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/wordeko/internal/config"
	"github.com/robalobadob/wordeko/internal/game"
	"github.com/robalobadob/wordeko/internal/migrations"
	"github.com/robalobadob/wordeko/internal/store"
	"github.com/robalobadob/wordeko/internal/words"
)

type harness struct {
	t          *testing.T
	ts         *httptest.Server
	client     *http.Client
	srv        *Server
	st         store.Store
	db         *sql.DB
	dictStatus atomic.Int32
	dictHits   atomic.Int32
	dictBody   atomic.Value // string
}

func testConfig() config.Config {
	return config.Config{
		ClientOrigin:   "http://localhost:5173",
		JWTSecret:      "test_secret",
		JWTExpiresDays: 1,
		CookieName:     "wordeko_token",
		NodeEnv:        "test",
		DailySalt:      "salt",
		TickRate:       60,
		SubmitRate:     100,
	}
}

// alphabetJSON is a dictionary holding every single letter.
func alphabetJSON() string {
	var parts []string
	for c := 'a'; c <= 'z'; c++ {
		parts = append(parts, fmt.Sprintf("%q:1", string(c)))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func newHarness(t *testing.T, cfg config.Config) *harness {
	t.Helper()
	h := &harness{t: t}
	h.dictStatus.Store(http.StatusOK)
	h.dictBody.Store(alphabetJSON())

	dict := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.dictHits.Add(1)
		w.WriteHeader(int(h.dictStatus.Load()))
		_, _ = w.Write([]byte(h.dictBody.Load().(string)))
	}))
	t.Cleanup(dict.Close)

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Apply(db))
	h.db = db

	h.st = store.NewMemoryStore()
	checker := words.NewDictionary(words.NewHTTPSource(dict.URL, dict.Client()))
	h.srv = New(cfg, h.st, db, checker)
	t.Cleanup(h.srv.Close)
	h.ts = httptest.NewServer(h.srv.Router())
	t.Cleanup(h.ts.Close)
	t.Cleanup(func() { h.st.Sweep(context.Background(), -time.Hour) })

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	h.client = &http.Client{Jar: jar, Timeout: 15 * time.Second}
	return h
}

// call sends body as JSON and decodes the response into out when non-nil.
func (h *harness) call(method, path string, body, out any) int {
	h.t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.ts.URL+path, rdr)
	require.NoError(h.t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.client.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(h.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (h *harness) newSession(mode string) sessionRes {
	h.t.Helper()
	var res sessionRes
	require.Equal(h.t, http.StatusOK, h.call(http.MethodPost, "/session/new", newSessionReq{Mode: mode}, &res))
	require.NotEmpty(h.t, res.SessionID)
	return res
}

func (h *harness) selectFirst(id string) game.Snapshot {
	h.t.Helper()
	var snap game.Snapshot
	require.Equal(h.t, http.StatusOK, h.call(http.MethodGet, "/session/"+id, nil, &snap))
	require.NotEmpty(h.t, snap.Letters)
	require.Equal(h.t, http.StatusOK,
		h.call(http.MethodPost, "/session/"+id+"/toggle", toggleReq{EntityID: snap.Letters[0].ID}, &snap))
	return snap
}

func (h *harness) submit(id string) (int, submitRes) {
	h.t.Helper()
	var res submitRes
	code := h.call(http.MethodPost, "/session/"+id+"/submit", nil, &res)
	return code, res
}

func TestHealthAndNotFound(t *testing.T) {
	h := newHarness(t, testConfig())

	var health map[string]any
	assert.Equal(t, http.StatusOK, h.call(http.MethodGet, "/health", nil, &health))
	assert.Equal(t, true, health["ok"])

	assert.Equal(t, http.StatusNotFound, h.call(http.MethodGet, "/nope", nil, nil))
	assert.Equal(t, http.StatusNotFound, h.call(http.MethodGet, "/session/missing", nil, nil))
}

func TestSession_NewHasFullBatch(t *testing.T) {
	h := newHarness(t, testConfig())
	res := h.newSession("normal")

	assert.Len(t, res.Snapshot.Letters, 30)
	assert.Equal(t, "active", res.Snapshot.State)
	assert.Zero(t, res.Snapshot.Score)
	assert.Equal(t, 480.0, res.Snapshot.Width)
	assert.True(t, res.Snapshot.Music.Playing)
	assert.Equal(t, 1, h.st.Len())

	require.NoError(t, h.srv.history.flush(context.Background()))
	var n int
	require.NoError(t, h.db.QueryRow(`SELECT COUNT(*) FROM games WHERE session_id=?`, res.SessionID).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSession_ToggleAndSubmitValid(t *testing.T) {
	h := newHarness(t, testConfig())
	id := h.newSession("normal").SessionID
	before := h.selectFirst(id)
	assert.Equal(t, before.Letters[0].Letter, before.Word)
	assert.True(t, before.Letters[0].Selected)

	code, res := h.submit(id)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, game.OutcomeValid, res.Outcome)
	assert.Equal(t, "Correct word! 🎉", res.Message)
	assert.Equal(t, 20, res.Score)
	assert.Equal(t, "", res.Snapshot.Word)
	assert.Len(t, res.Snapshot.Letters, 30)
	assert.EqualValues(t, 1, h.dictHits.Load())
}

func TestSession_CommandErrors(t *testing.T) {
	h := newHarness(t, testConfig())
	id := h.newSession("").SessionID

	code, res := h.submit(id)
	assert.Equal(t, http.StatusOK, code, "empty word")
	assert.Equal(t, game.OutcomeInvalid, res.Outcome)
	assert.EqualValues(t, 1, h.dictHits.Load())

	assert.Equal(t, http.StatusBadRequest,
		h.call(http.MethodPost, "/session/"+id+"/toggle", toggleReq{EntityID: 9999}, nil))
	assert.Equal(t, http.StatusBadRequest,
		h.call(http.MethodPost, "/session/"+id+"/toggle", "not an object", nil))
}

func TestSession_DictionaryDownLeavesStateAlone(t *testing.T) {
	h := newHarness(t, testConfig())
	id := h.newSession("normal").SessionID
	before := h.selectFirst(id)
	h.dictStatus.Store(http.StatusInternalServerError)

	code, res := h.submit(id)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, game.OutcomeError, res.Outcome)
	assert.Equal(t, "Word validation failed. Please try again later.", res.Message)
	assert.Equal(t, before.Word, res.Snapshot.Word)
	assert.Equal(t, before.Score, res.Snapshot.Score)
	assert.Equal(t, "active", res.Snapshot.State)
}

func TestSession_MalformedDictionaryLeavesStateAlone(t *testing.T) {
	h := newHarness(t, testConfig())
	id := h.newSession("normal").SessionID
	h.selectFirst(id)
	code, res := h.submit(id)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 20, res.Score)

	before := h.selectFirst(id)
	h.dictBody.Store("<html>not a dictionary</html>")

	code, res = h.submit(id)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, game.OutcomeError, res.Outcome)
	assert.Equal(t, "Word validation failed. Please try again later.", res.Message)
	assert.Equal(t, before.Word, res.Snapshot.Word)
	assert.Equal(t, 20, res.Snapshot.Score)
	assert.Equal(t, "active", res.Snapshot.State)
	require.Len(t, res.Snapshot.Letters, len(before.Letters))
	for i, lv := range before.Letters {
		assert.Equal(t, lv.ID, res.Snapshot.Letters[i].ID)
		assert.Equal(t, lv.Selected, res.Snapshot.Letters[i].Selected)
	}
}

func TestSession_LockedDatabaseDoesNotStallTicks(t *testing.T) {
	h := newHarness(t, testConfig())
	id := h.newSession("normal").SessionID
	require.NoError(t, h.srv.history.flush(context.Background()))

	ctx := context.Background()
	conn, err := h.db.Conn(ctx)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, "BEGIN IMMEDIATE")
	require.NoError(t, err)
	defer func() {
		_, _ = conn.ExecContext(ctx, "ROLLBACK")
		_ = conn.Close()
	}()

	before := h.selectFirst(id)
	start := time.Now()
	code, res := h.submit(id)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, game.OutcomeValid, res.Outcome)
	assert.Less(t, time.Since(start), time.Second)

	// 60 ticks per second: 20 more ticks within a second while the write waits.
	assert.Eventually(t, func() bool {
		var snap game.Snapshot
		return h.call(http.MethodGet, "/session/"+id, nil, &snap) == http.StatusOK &&
			snap.Tick > before.Tick+20
	}, time.Second, 20*time.Millisecond)
}

func TestSession_SubmitIsRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.SubmitRate = 0.001
	h := newHarness(t, cfg)
	id := h.newSession("normal").SessionID

	for i := 0; i < submitBurst; i++ {
		code, _ := h.submit(id)
		assert.Equal(t, http.StatusOK, code)
	}
	code, _ := h.submit(id)
	assert.Equal(t, http.StatusTooManyRequests, code)
}

func TestSession_WinRestartAndMusic(t *testing.T) {
	h := newHarness(t, testConfig())
	id := h.newSession("normal").SessionID

	var res submitRes
	for i := 0; i < 5; i++ {
		h.selectFirst(id)
		var code int
		code, res = h.submit(id)
		require.Equal(t, http.StatusOK, code)
	}
	assert.True(t, res.Ended)
	assert.Equal(t, 100, res.Score)
	assert.False(t, res.Snapshot.Music.Playing)

	var snap game.Snapshot
	require.Equal(t, http.StatusOK, h.call(http.MethodGet, "/session/"+id, nil, &snap))
	assert.Equal(t, http.StatusConflict,
		h.call(http.MethodPost, "/session/"+id+"/toggle", toggleReq{EntityID: snap.Letters[0].ID}, nil))

	require.Equal(t, http.StatusOK, h.call(http.MethodPost, "/session/"+id+"/restart", nil, &snap))
	assert.False(t, snap.Ended)
	assert.Zero(t, snap.Score)
	assert.Len(t, snap.Letters, 30)

	vol := 0.3
	require.Equal(t, http.StatusOK, h.call(http.MethodPost, "/session/"+id+"/music", musicReq{Volume: &vol, Toggle: true}, &snap))
	assert.Equal(t, game.MusicState{Playing: false, Volume: 0.3}, snap.Music)

	assert.Eventually(t, func() bool {
		var won int
		err := h.db.QueryRow(`SELECT COUNT(*) FROM games WHERE session_id=? AND status='won'`, id).Scan(&won)
		return err == nil && won == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestAuth_SignupStatsAndHistory(t *testing.T) {
	h := newHarness(t, testConfig())

	assert.Equal(t, http.StatusUnauthorized, h.call(http.MethodGet, "/auth/me", nil, nil))

	var me authUser
	require.Equal(t, http.StatusOK, h.call(http.MethodPost, "/auth/signup", signupReq{Username: "player_1", Password: "hunter22!"}, &me))
	assert.Equal(t, "player_1", me.Username)
	assert.Equal(t, http.StatusConflict, h.call(http.MethodPost, "/auth/signup", signupReq{Username: "PLAYER_1", Password: "hunter22!"}, nil))
	assert.Equal(t, http.StatusBadRequest, h.call(http.MethodPost, "/auth/signup", signupReq{Username: "x", Password: "short"}, nil))

	var got authUser
	require.Equal(t, http.StatusOK, h.call(http.MethodGet, "/auth/me", nil, &got))
	assert.Equal(t, me.ID, got.ID)

	id := h.newSession("normal").SessionID
	for i := 0; i < 5; i++ {
		h.selectFirst(id)
		code, _ := h.submit(id)
		require.Equal(t, http.StatusOK, code)
	}

	require.Eventually(t, func() bool {
		var stats map[string]any
		if h.call(http.MethodGet, "/stats/me", nil, &stats) != http.StatusOK {
			return false
		}
		return stats["wins"] == 1.0 && stats["bestScore"] == 100.0 && stats["streak"] == 1.0
	}, 2*time.Second, 20*time.Millisecond)

	var games []gameRow
	require.Equal(t, http.StatusOK, h.call(http.MethodGet, "/games/mine", nil, &games))
	require.Len(t, games, 1)
	assert.Equal(t, "won", games[0].Status)
	assert.Len(t, games[0].Words, 5)

	require.Equal(t, http.StatusOK, h.call(http.MethodPost, "/auth/logout", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, h.call(http.MethodGet, "/auth/me", nil, nil))

	require.Equal(t, http.StatusOK, h.call(http.MethodPost, "/auth/login", loginReq{Username: "player_1", Password: "hunter22!"}, nil))
	assert.Equal(t, http.StatusOK, h.call(http.MethodGet, "/auth/me", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, h.call(http.MethodPost, "/auth/login", loginReq{Username: "player_1", Password: "wrong-pass"}, nil))
}

func TestDaily_SameLettersOncePerDay(t *testing.T) {
	h := newHarness(t, testConfig())

	var first, again newRes
	require.Equal(t, http.StatusOK, h.call(http.MethodPost, "/daily/new", nil, &first))
	require.False(t, first.Played)
	require.NotNil(t, first.Snapshot)
	require.Equal(t, http.StatusOK, h.call(http.MethodPost, "/daily/new", nil, &again))
	assert.Equal(t, first.SessionID, again.SessionID)

	// A second player on the same day sees the same layout.
	other := newHarness(t, testConfig())
	var theirs newRes
	require.Equal(t, http.StatusOK, other.call(http.MethodPost, "/session/new", newSessionReq{Mode: "daily"}, &theirs))
	require.NotNil(t, theirs.Snapshot)
	for i := range first.Snapshot.Letters {
		assert.Equal(t, first.Snapshot.Letters[i].Letter, theirs.Snapshot.Letters[i].Letter)
	}

	for i := 0; i < 5; i++ {
		h.selectFirst(first.SessionID)
		code, _ := h.submit(first.SessionID)
		require.Equal(t, http.StatusOK, code)
	}

	var lb lbRes
	require.Eventually(t, func() bool {
		return h.call(http.MethodGet, "/daily/leaderboard", nil, &lb) == http.StatusOK && len(lb.Top) == 1
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, 100, lb.Top[0].Score)
	assert.Len(t, lb.Top[0].Words, 5)

	var played newRes
	require.Equal(t, http.StatusOK, h.call(http.MethodPost, "/daily/new", nil, &played))
	assert.True(t, played.Played)
	assert.Empty(t, played.SessionID)
}

func TestDaily_StoppedSessionIsForgotten(t *testing.T) {
	h := newHarness(t, testConfig())

	var first newRes
	require.Equal(t, http.StatusOK, h.call(http.MethodPost, "/daily/new", nil, &first))
	require.NotEmpty(t, first.SessionID)
	assert.Equal(t, 1, h.srv.daily.tracked())

	require.NoError(t, h.st.Delete(context.Background(), first.SessionID))
	assert.Zero(t, h.srv.daily.tracked())

	// Abandoning counts as today's result, so no new session is handed out.
	var again newRes
	require.Equal(t, http.StatusOK, h.call(http.MethodPost, "/daily/new", nil, &again))
	assert.True(t, again.Played)
	assert.Zero(t, h.srv.daily.tracked())
}

func TestStream_SnapshotThenEvents(t *testing.T) {
	h := newHarness(t, testConfig())
	id := h.newSession("normal").SessionID

	url := "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/session/" + id + "/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	read := func() frame {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var f struct {
			Tick   uint64 `json:"tick"`
			Events []struct {
				Type string          `json:"type"`
				Data json.RawMessage `json:"data"`
			} `json:"events"`
		}
		require.NoError(t, conn.ReadJSON(&f))
		out := frame{Tick: f.Tick}
		for _, e := range f.Events {
			out.Events = append(out.Events, event{Type: e.Type, Data: e.Data})
		}
		return out
	}

	first := read()
	require.Len(t, first.Events, 1)
	assert.Equal(t, "snapshot", first.Events[0].Type)
	var snap game.Snapshot
	require.NoError(t, json.Unmarshal(first.Events[0].Data.(json.RawMessage), &snap))
	assert.Len(t, snap.Letters, 30)

	seen := map[string]bool{}
	h.selectFirst(id)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !(seen["move"] && seen["select"] && seen["word"]) {
		for _, e := range read().Events {
			seen[e.Type] = true
		}
	}
	assert.True(t, seen["move"])
	assert.True(t, seen["select"])
	assert.True(t, seen["word"])
}

func TestStream_ClosedWhenSessionStops(t *testing.T) {
	h := newHarness(t, testConfig())
	id := h.newSession("normal").SessionID

	url := "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/session/" + id + "/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.NoError(t, h.st.Delete(context.Background(), id))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			var ce *websocket.CloseError
			if assert.ErrorAs(t, err, &ce) {
				assert.Equal(t, websocket.CloseNormalClosure, ce.Code)
			}
			return
		}
	}
}
