package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shared-spreadsheet-editor/internal/remote"
	"shared-spreadsheet-editor/internal/sheet"
)

type memStore struct {
	mu    sync.Mutex
	saved []*sheet.Document
}

func (m *memStore) Load(ctx context.Context, id string) (remote.File, error) {
	return remote.File{ID: id, Name: "Budget", Headers: []string{"Item", "Cost"}, Rows: []sheet.Row{{"Item": sheet.Text("Rent"), "Cost": sheet.Number(900)}}}, nil
}

func (m *memStore) Save(ctx context.Context, id, name string, doc *sheet.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, doc)
	return nil
}

func (m *memStore) last() *sheet.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return nil
	}
	return m.saved[len(m.saved)-1]
}

func newTestServer(t *testing.T, store Persistence) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(quietLog())
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(&Server{
		Hub:         hub,
		Session:     Config{AutosaveDelay: time.Hour, BannerTimeout: time.Hour},
		Persistence: func(string) Persistence { return store },
		Validate: func(token string) (string, error) {
			if token != "tok" {
				return "", errors.New("invalid token")
			}
			return "ann", nil
		},
		Upgrader:    websocket.Upgrader{CheckOrigin: CheckOrigin(nil)},
		BaseContext: ctx,
		Log:         quietLog(),
	})
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, typ string) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var m Message
		require.NoError(t, conn.ReadJSON(&m))
		if m.Type == typ {
			return m
		}
	}
}

func TestServer_RoundTrip(t *testing.T) {
	store := &memStore{}
	hub, srv := newTestServer(t, store)

	a := dial(t, srv, "file=f1&token=tok")
	b := dial(t, srv, "file=f1&token=tok")
	render := readUntil(t, a, TypeRender)
	assert.Equal(t, "f1", render.FileID)
	assert.Equal(t, []string{"Item", "Cost"}, payload[renderPayload](t, render).Headers)
	readUntil(t, b, TypeRender)
	require.Eventually(t, func() bool { return hub.Clients("f1") == 2 }, time.Second, tick)

	require.NoError(t, a.WriteJSON(newMessage(string(EvCellEdit), map[string]any{"row": 0, "col": 1, "value": 950})))
	require.NoError(t, a.WriteJSON(newMessage(string(EvSave), nil)))

	notice := readUntil(t, a, TypeNotice)
	assert.Equal(t, "success", payload[map[string]string](t, notice)["level"])
	saved := store.last()
	require.NotNil(t, saved)
	assert.Equal(t, sheet.Number(950), saved.Rows[0]["Cost"])

	relayed := readUntil(t, b, TypeFileSaved)
	assert.Equal(t, "ann", relayed.User)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("{not json")))
	readUntil(t, a, TypeCommandError)

	a.Close()
	require.Eventually(t, func() bool { return hub.Clients("f1") == 1 }, time.Second, tick)
}

func TestServer_RejectsBadRequests(t *testing.T) {
	_, srv := newTestServer(t, &memStore{})

	resp, err := http.Get(srv.URL + "/?token=tok")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/?file=f1&token=bad", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCheckOrigin(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Origin", "http://evil.example")
	assert.True(t, CheckOrigin(nil)(req))
	assert.False(t, CheckOrigin([]string{"http://localhost:5173"})(req))
	req.Header.Set("Origin", "http://localhost:5173")
	assert.True(t, CheckOrigin([]string{"http://localhost:5173"})(req))
}
