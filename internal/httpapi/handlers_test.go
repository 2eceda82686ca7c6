package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/promptparty-backend/internal/engine"
	"github.com/DoyleJ11/promptparty-backend/internal/hub"
)

func newTestRouter(t *testing.T) (*hub.Hub, http.Handler) {
	t.Helper()
	h := hub.NewHub(context.Background(), hub.Config{})
	t.Cleanup(func() { _ = h.Shutdown(context.Background()) })
	return h, SetupRoutes(h, Options{PublicBaseURL: "https://party.example/"})
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthz(t *testing.T) {
	_, router := newTestRouter(t)
	rec := do(t, router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateLobby(t *testing.T) {
	_, router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/lobbies",
		`{"name":"Ana","avatar":"🐙","settings":{"rounds":6,"theme":"animals","max_players":4}}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decode[PlayerResponse](t, rec)
	assert.Len(t, resp.Code, hub.CodeLength)
	assert.NotEmpty(t, resp.PlayerID)
	assert.Equal(t, resp.PlayerID, resp.Player.ID)
	assert.True(t, resp.Player.IsHost)
	assert.Equal(t, "Ana", resp.Player.Name)

	rec = do(t, router, http.MethodGet, "/lobbies/"+resp.Code, "")
	require.Equal(t, http.StatusOK, rec.Code)
	lobbyResp := decode[LobbyResponse](t, rec)
	assert.Equal(t, engine.PhaseLobby, lobbyResp.Phase)
	assert.Equal(t, 1, lobbyResp.Players)
	assert.Equal(t, engine.Settings{Rounds: 6, Theme: "animals", MaxPlayers: 4}, lobbyResp.Settings)
}

func TestCreateLobby_EmptyBodyUsesDefaults(t *testing.T) {
	_, router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/lobbies", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decode[PlayerResponse](t, rec)
	assert.Equal(t, engine.DefaultName, resp.Player.Name)

	rec = do(t, router, http.MethodGet, "/lobbies/"+resp.Code, "")
	assert.Equal(t, engine.DefaultSettings(), decode[LobbyResponse](t, rec).Settings)
}

func TestCreateLobby_BadJSON(t *testing.T) {
	_, router := newTestRouter(t)
	rec := do(t, router, http.MethodPost, "/lobbies", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJoinLobby(t *testing.T) {
	_, router := newTestRouter(t)
	created := decode[PlayerResponse](t, do(t, router, http.MethodPost, "/lobbies", `{"name":"Ana"}`))

	rec := do(t, router, http.MethodPost, "/lobbies/"+created.Code+"/players", `{"name":"Bo"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	bo := decode[PlayerResponse](t, rec)
	assert.False(t, bo.Spectator)
	assert.False(t, bo.Player.IsHost)
	assert.Empty(t, bo.Note)

	// Lower-case codes are accepted.
	rec = do(t, router, http.MethodPost, "/lobbies/"+strings.ToLower(created.Code)+"/players",
		`{"name":"Cy","spectator":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	cy := decode[PlayerResponse](t, rec)
	assert.True(t, cy.Spectator)
	assert.Equal(t, engine.NoteRequestedSpectator, cy.Note)

	// Rejoin with a known id returns the same player.
	rec = do(t, router, http.MethodPost, "/lobbies/"+created.Code+"/players", `{"player_id":"`+bo.PlayerID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, bo.PlayerID, decode[PlayerResponse](t, rec).PlayerID)

	rec = do(t, router, http.MethodGet, "/lobbies/"+created.Code, "")
	assert.Equal(t, 3, decode[LobbyResponse](t, rec).Players)
}

func TestLeaveLobby(t *testing.T) {
	h, router := newTestRouter(t)
	created := decode[PlayerResponse](t, do(t, router, http.MethodPost, "/lobbies", `{"name":"Ana"}`))
	bo := decode[PlayerResponse](t, do(t, router, http.MethodPost, "/lobbies/"+created.Code+"/players", `{"name":"Bo"}`))

	rec := do(t, router, http.MethodDelete, "/lobbies/"+created.Code+"/players/"+created.PlayerID, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	lb, err := h.Get(context.Background(), created.Code)
	require.NoError(t, err)
	v, err := lb.Inspect(context.Background())
	require.NoError(t, err)
	// The host left, so the host moves to the connected player.
	assert.Equal(t, bo.PlayerID, v.State.HostID)
	assert.False(t, v.State.Players[0].Connected)
	assert.Len(t, v.State.Players, 2)
}

func TestUnknownLobby(t *testing.T) {
	_, router := newTestRouter(t)

	tests := []struct {
		method, path, body string
	}{
		{http.MethodGet, "/lobbies/NOPE42", ""},
		{http.MethodPost, "/lobbies/NOPE42/players", `{"name":"Bo"}`},
		{http.MethodGet, "/lobbies/NOPE42/qr.png", ""},
		{http.MethodDelete, "/lobbies/NOPE42/players/p1", ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := do(t, router, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusNotFound, rec.Code)
		})
	}
}

func TestQRCode(t *testing.T) {
	_, router := newTestRouter(t)
	created := decode[PlayerResponse](t, do(t, router, http.MethodPost, "/lobbies", `{"name":"Ana"}`))

	rec := do(t, router, http.MethodGet, "/lobbies/"+created.Code+"/qr.png", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
}

func TestJoinURL(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/lobbies/ABC234/qr.png", nil)
	req.Host = "game.local:8080"
	assert.Equal(t, "http://game.local:8080/join/ABC234", JoinURL(req, "", "ABC234"))

	req.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https://game.local:8080/join/ABC234", JoinURL(req, "", "ABC234"))

	assert.Equal(t, "https://party.example/join/ABC234", JoinURL(req, "https://party.example/", "ABC234"))
}
