package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/gridboard/internal/auth"
	"github.com/alexanderramin/gridboard/internal/cache"
	"github.com/alexanderramin/gridboard/internal/metric"
	"github.com/alexanderramin/gridboard/internal/occurrence"
	"github.com/alexanderramin/gridboard/internal/protocol"
	"github.com/alexanderramin/gridboard/internal/repository"
	"github.com/alexanderramin/gridboard/internal/server"
	gbsync "github.com/alexanderramin/gridboard/internal/sync"
	"github.com/alexanderramin/gridboard/internal/testutil"
	"github.com/alexanderramin/gridboard/internal/txlog"
)

func newTestServer(t *testing.T) (*httptest.Server, *auth.Verifier, *repository.Repos) {
	t.Helper()

	database := testutil.NewTestDB(t)
	repos := repository.NewRepos(database)
	store := occurrence.NewStore(repos.Occurrences, repos.ParentLists)
	txEngine := txlog.NewEngine(testutil.NewTestUoW(database), repos, nil)
	metricEngine := metric.NewEngine(repos.Txs, nil)
	hub := gbsync.NewHub(nil)
	svc := gbsync.NewService(repos, store, txEngine, metricEngine, hub, nil)
	manager := cache.NewManager(repos, nil)
	verifier := auth.NewVerifier("test-secret")

	srv := server.New(manager, svc, hub, verifier, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, verifier, repos
}

func wsURL(ts *httptest.Server, token string) string {
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	if token != "" {
		u += "?token=" + token
	}
	return u
}

func TestHealthz(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsExposed(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWS_RejectsMissingAndBadTokens(t *testing.T) {
	ts, _, _ := newTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(wsURL(ts, "bogus"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWS_FullStateRoundTrip(t *testing.T) {
	ts, verifier, repos := newTestServer(t)
	ctx := context.Background()

	grid := testutil.NewTestGrid("user-1", "Life")
	require.NoError(t, repos.Grids.Upsert(ctx, grid))
	tasks := testutil.NewTestContainer(grid.ID, "Tasks")
	require.NoError(t, repos.Containers.Upsert(ctx, tasks))

	token, err := verifier.Mint("user-1", time.Hour)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, token), nil)
	require.NoError(t, err)
	defer conn.Close()

	env, err := protocol.NewEnvelope(protocol.TypeRequestFullState, "", protocol.RequestFullState{GridID: grid.ID})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(env))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var reply protocol.Envelope
	require.NoError(t, conn.ReadJSON(&reply))
	require.Equal(t, protocol.TypeFullState, reply.Type)

	var state protocol.FullState
	require.NoError(t, reply.Decode(&state))
	assert.Equal(t, grid.ID, state.GridID)
	require.Len(t, state.Grids, 1)
	assert.Equal(t, grid.ID, state.Grids[0].ID)
	require.Len(t, state.Containers, 1)
	assert.Equal(t, "Tasks", state.Containers[0].Name)
}

func TestWS_AuthorizationHeaderAccepted(t *testing.T) {
	ts, verifier, _ := newTestServer(t)

	token, err := verifier.Mint("user-1", time.Hour)
	require.NoError(t, err)

	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), header)
	require.NoError(t, err)
	conn.Close()
}
