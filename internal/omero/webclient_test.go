package omero

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testServer is a scripted web gateway with one known project, dataset and
// image, accepting the session token "sess-1".
type testServer struct {
	*httptest.Server
	logins         atomic.Int32
	sessionDeletes atomic.Int32
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{}

	authed := func(r *http.Request) bool {
		return r.Header.Get("X-OMERO-Session") == "sess-1"
	}
	writeJSON := func(w http.ResponseWriter, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v0/session", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var login struct {
				User     string `json:"user"`
				Password string `json:"password"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&login))
			if login.User != "alice" || login.Password != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			ts.logins.Add(1)
			writeJSON(w, map[string]string{"id": "sess-1"})
		case http.MethodGet:
			if !authed(r) {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			writeJSON(w, map[string]string{"id": "sess-1"})
		case http.MethodDelete:
			ts.sessionDeletes.Add(1)
			w.WriteHeader(http.StatusOK)
		}
	})
	mux.HandleFunc("/api/v0/objects/Project/4", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"type": "Project", "id": 4, "name": "screens"})
	})
	mux.HandleFunc("/api/v0/objects/Project/4/children", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]interface{}{
			{"type": "Dataset", "id": 10, "name": "plate-1"},
			{"type": "Dataset", "id": 11, "name": "plate-2"},
		})
	})
	mux.HandleFunc("/api/v0/images/9/dims", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]int{"size_c": 2, "size_z": 3, "size_t": 4})
	})
	mux.HandleFunc("/api/v0/images/9/plane", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("c"))
		assert.Equal(t, "0", q.Get("z"))
		assert.Equal(t, "2", q.Get("t"))
		writeJSON(w, map[string][]float64{"values": {0, 127.5, 255}})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	ts.Server = httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) config(t *testing.T) Config {
	t.Helper()
	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return Config{Host: host, Port: port}
}

func TestDial(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a session from credentials", func(t *testing.T) {
		ts := newTestServer(t)
		cfg := ts.config(t)
		cfg.User, cfg.Password = "alice", "secret"

		c, err := Dial(ctx, cfg)
		require.NoError(t, err)
		assert.Equal(t, "sess-1", c.SessionID())
		assert.Equal(t, int32(1), ts.logins.Load())

		t.Run("close ends the owned session", func(t *testing.T) {
			require.NoError(t, c.Close())
			assert.Equal(t, int32(1), ts.sessionDeletes.Load())
		})
	})

	t.Run("joins an existing session by token", func(t *testing.T) {
		ts := newTestServer(t)
		cfg := ts.config(t)
		cfg.SessionID = "sess-1"

		c, err := Dial(ctx, cfg)
		require.NoError(t, err)
		assert.Zero(t, ts.logins.Load(), "joining must not log in")

		t.Run("close leaves the joined session alive", func(t *testing.T) {
			require.NoError(t, c.Close())
			assert.Zero(t, ts.sessionDeletes.Load())
		})
	})

	t.Run("rejects a bad token at dial time", func(t *testing.T) {
		ts := newTestServer(t)
		cfg := ts.config(t)
		cfg.SessionID = "bogus"

		_, err := Dial(ctx, cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to join session")
	})

	t.Run("rejects bad credentials", func(t *testing.T) {
		ts := newTestServer(t)
		cfg := ts.config(t)
		cfg.User, cfg.Password = "alice", "wrong"

		_, err := Dial(ctx, cfg)
		assert.Error(t, err)
	})

	t.Run("requires credentials or a token", func(t *testing.T) {
		_, err := Dial(ctx, Config{Host: "localhost"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid connection config")
	})
}

func dialTestClient(t *testing.T) (*WebClient, *testServer) {
	t.Helper()
	ts := newTestServer(t)
	cfg := ts.config(t)
	cfg.SessionID = "sess-1"
	c, err := Dial(context.Background(), cfg)
	require.NoError(t, err)
	return c, ts
}

func TestWebClientQueries(t *testing.T) {
	ctx := context.Background()
	c, _ := dialTestClient(t)

	t.Run("resolve", func(t *testing.T) {
		obj, err := c.Resolve(ctx, TypeProject, 4)
		require.NoError(t, err)
		assert.Equal(t, Object{Type: TypeProject, ID: 4, Name: "screens"}, obj)
	})

	t.Run("resolve missing object", func(t *testing.T) {
		_, err := c.Resolve(ctx, TypeProject, 999)
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
		assert.Contains(t, err.Error(), "unable to get object: Project 999")
	})

	t.Run("list children in server order", func(t *testing.T) {
		children, err := c.ListChildren(ctx, Object{Type: TypeProject, ID: 4})
		require.NoError(t, err)
		assert.Equal(t, []Object{
			{Type: TypeDataset, ID: 10, Name: "plate-1"},
			{Type: TypeDataset, ID: 11, Name: "plate-2"},
		}, children)
	})

	t.Run("plane dims", func(t *testing.T) {
		dims, err := c.PlaneDims(ctx, Object{Type: TypeImage, ID: 9})
		require.NoError(t, err)
		assert.Equal(t, PlaneDims{SizeC: 2, SizeZ: 3, SizeT: 4}, dims)
	})

	t.Run("plane dims of missing image", func(t *testing.T) {
		_, err := c.PlaneDims(ctx, Object{Type: TypeImage, ID: 999})
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
	})

	t.Run("plane data", func(t *testing.T) {
		values, err := c.PlaneData(ctx, 9, 1, 0, 2)
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 127.5, 255}, values)
	})

	t.Run("plane data of missing image", func(t *testing.T) {
		_, err := c.PlaneData(ctx, 999, 0, 0, 0)
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
	})
}
