package hub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/promptparty-backend/internal/content"
	"github.com/DoyleJ11/promptparty-backend/internal/engine"
	"github.com/DoyleJ11/promptparty-backend/internal/lobby"
)

func newTestHub(t *testing.T, cfg Config) *Hub {
	t.Helper()
	h := NewHub(context.Background(), cfg)
	t.Cleanup(func() {
		_ = h.Shutdown(context.Background())
		<-h.Done()
	})
	return h
}

func TestHub_Create_Get_SamePointer(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, Config{})

	created, err := h.Create(ctx, engine.DefaultSettings(), "Ana", "🐙")
	require.NoError(t, err)

	lb, err := h.Get(ctx, created.Code)
	require.NoError(t, err)
	assert.Same(t, created.Lobby, lb)
	assert.Equal(t, created.Code, lb.ID())
}

func TestHub_CreateMakesHost(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, Config{})

	created, err := h.Create(ctx, engine.Settings{Rounds: 50, MaxPlayers: 1}, "  Ana  ", "")
	require.NoError(t, err)

	assert.True(t, created.Host.IsHost)
	assert.Equal(t, "Ana", created.Host.Name)
	assert.Len(t, created.Code, CodeLength)

	v, err := created.Lobby.Inspect(ctx)
	require.NoError(t, err)
	assert.Equal(t, created.Host.ID, v.State.HostID)
	assert.Equal(t, engine.PhaseLobby, v.State.Phase)
	// Settings arrive sanitised.
	assert.Equal(t, engine.MaxRounds, v.State.Settings.Rounds)
	assert.Equal(t, engine.MinMaxPlayers, v.State.Settings.MaxPlayers)
}

func TestHub_GetUnknown(t *testing.T) {
	h := newTestHub(t, Config{})
	_, err := h.Get(context.Background(), "NOPE42")
	assert.ErrorIs(t, err, ErrLobbyNotFound)
}

func TestHub_JoinUnknownLobby(t *testing.T) {
	h := newTestHub(t, Config{})
	_, err := h.Join(context.Background(), "NOPE42", engine.JoinRequest{Name: "Bo"})
	assert.ErrorIs(t, err, ErrLobbyNotFound)
}

func TestHub_JoinAddsPlayer(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, Config{})
	created, err := h.Create(ctx, engine.DefaultSettings(), "Ana", "")
	require.NoError(t, err)

	res, err := h.Join(ctx, created.Code, engine.JoinRequest{Name: "Bo"})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.False(t, res.Spectator)
	assert.False(t, res.Player.IsHost)

	v, err := created.Lobby.Inspect(ctx)
	require.NoError(t, err)
	require.Len(t, v.State.Players, 2)
	assert.Equal(t, created.Host.ID, v.State.HostID)
}

func TestHub_RemoveClosesLobby(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, Config{})
	created, err := h.Create(ctx, engine.DefaultSettings(), "Ana", "")
	require.NoError(t, err)

	require.NoError(t, h.Remove(ctx, created.Code))

	select {
	case <-created.Lobby.Done():
	case <-time.After(time.Second):
		t.Fatal("lobby still running after remove")
	}
	_, err = h.Get(ctx, created.Code)
	assert.ErrorIs(t, err, ErrLobbyNotFound)

	// Removing twice is harmless.
	require.NoError(t, h.Remove(ctx, created.Code))
}

func TestHub_ShutdownClosesEverything(t *testing.T) {
	ctx := context.Background()
	h := NewHub(ctx, Config{})
	a, err := h.Create(ctx, engine.DefaultSettings(), "Ana", "")
	require.NoError(t, err)
	b, err := h.Create(ctx, engine.DefaultSettings(), "Bo", "")
	require.NoError(t, err)
	assert.NotEqual(t, a.Code, b.Code)

	require.NoError(t, h.Shutdown(ctx))
	for _, lb := range []*lobby.Lobby{a.Lobby, b.Lobby} {
		select {
		case <-lb.Done():
		case <-time.After(time.Second):
			t.Fatal("lobby still running after shutdown")
		}
	}
	<-h.Done()

	_, err = h.Create(ctx, engine.DefaultSettings(), "Cy", "")
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestHub_ListenersHearChanges(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, Config{})

	var mu sync.Mutex
	var got []lobby.Change
	h.Listen(func(c lobby.Change) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, c)
	})

	created, err := h.Create(ctx, engine.DefaultSettings(), "Ana", "")
	require.NoError(t, err)
	_, err = h.Join(ctx, created.Code, engine.JoinRequest{Name: "Bo"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, created.Code, got[0].LobbyID)
	assert.Equal(t, 1, got[0].Version)
	assert.Equal(t, engine.PhaseLobby, got[0].Phase)
}

func TestHub_SweepRemovesIdleLobbies(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, Config{})

	idle, err := h.Create(ctx, engine.DefaultSettings(), "Ana", "")
	require.NoError(t, err)
	busy, err := h.Create(ctx, engine.DefaultSettings(), "Bo", "")
	require.NoError(t, err)

	out := make(chan lobby.Snapshot, 8)
	busy.Lobby.Inbox() <- lobby.Attach{ClientID: "c1", PlayerID: busy.Host.ID, Outbox: out}
	_, err = busy.Lobby.Inspect(ctx) // Attach has been processed
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	removed, err := h.Sweep(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []string{idle.Code}, removed)

	_, err = h.Get(ctx, idle.Code)
	assert.ErrorIs(t, err, ErrLobbyNotFound)
	_, err = h.Get(ctx, busy.Code)
	assert.NoError(t, err)
}

func TestHub_SweepKeepsFreshLobbies(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, Config{})
	_, err := h.Create(ctx, engine.DefaultSettings(), "Ana", "")
	require.NoError(t, err)

	removed, err := h.Sweep(ctx, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestGenerateCode(t *testing.T) {
	seen := map[string]bool{}
	for range 50 {
		code := GenerateCode()
		require.Len(t, code, CodeLength)
		for _, r := range code {
			assert.Contains(t, CodeChars, string(r))
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 40)
}

func TestHub_FetchTimeoutReachesLobbies(t *testing.T) {
	ctx := context.Background()
	stuck := content.ProviderFunc(func(ctx context.Context, _ int, _ content.Theme) ([]content.Card, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	h := newTestHub(t, Config{Provider: stuck, FetchTimeout: 20 * time.Millisecond})

	created, err := h.Create(ctx, engine.DefaultSettings(), "Ana", "")
	require.NoError(t, err)
	_, err = h.Join(ctx, created.Code, engine.JoinRequest{Name: "Bo"})
	require.NoError(t, err)

	startCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	err = created.Lobby.Start(startCtx, created.Host.ID)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NoError(t, startCtx.Err(), "start should fail on the fetch timeout, not the caller's")

	v, err := created.Lobby.Inspect(ctx)
	require.NoError(t, err)
	assert.Equal(t, engine.PhaseLobby, v.State.Phase)
	assert.False(t, v.State.Starting)
}
