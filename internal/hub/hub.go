// Package hub is the session store: it owns every lobby actor, hands out
// lobby handles by code and fans lobby changes out to process-wide listeners.
package hub

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/promptparty-backend/internal/content"
	"github.com/DoyleJ11/promptparty-backend/internal/engine"
	"github.com/DoyleJ11/promptparty-backend/internal/lobby"
	"github.com/DoyleJ11/promptparty-backend/internal/platform/logging"
)

var ErrLobbyNotFound = errors.New("lobby not found")
var ErrHubClosed = errors.New("hub closed")

const (
	CodeLength = 6
	// CodeChars leaves out characters that are easy to misread.
	CodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

type HubMsg interface{ isHubMsg() }

type CreateLobby struct {
	Settings   engine.Settings
	HostName   string
	HostAvatar string
	Reply      chan Created
}

type Created struct {
	Code  string
	Lobby *lobby.Lobby
	Host  engine.Player
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

type ListLobbies struct {
	Reply chan []*lobby.Lobby
}

type RemoveLobby struct {
	Code string
}

type ShutdownHub struct{}

func (CreateLobby) isHubMsg() {}
func (GetLobby) isHubMsg()    {}
func (ListLobbies) isHubMsg() {}
func (RemoveLobby) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}

// Listener hears about every committed lobby change. It runs on the lobby's
// goroutine and must not block or call back into that lobby synchronously.
type Listener func(lobby.Change)

type Config struct {
	Provider content.Provider
	Log      *zap.Logger
	// Game carries timings, clock and id/seed sources for new lobbies.
	Game engine.Options
	// IdleTTL removes lobbies without clients or activity for this long.
	// Zero disables the sweep.
	IdleTTL time.Duration
	// FetchTimeout bounds each deck fetch. Zero keeps the lobby default.
	FetchTimeout time.Duration
}

type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	cfg     Config
	log     *zap.Logger

	mu        sync.RWMutex
	listeners []Listener

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewHub(parent context.Context, cfg Config) *Hub {
	ctx, cancel := context.WithCancel(parent)
	cfg.Log = logging.Resolve(cfg.Log)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		cfg:     cfg,
		log:     cfg.Log,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go h.loop()
	if cfg.IdleTTL > 0 {
		go h.sweepLoop(cfg.IdleTTL)
	}
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed once the hub goroutine has exited.
func (h *Hub) Done() <-chan struct{} { return h.done }

// Listen registers a listener for the lifetime of the process.
func (h *Hub) Listen(l Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, l)
}

func (h *Hub) notify(c lobby.Change) {
	h.mu.RLock()
	ls := h.listeners
	h.mu.RUnlock()
	for _, l := range ls {
		l(c)
	}
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				msg.Reply <- h.create(msg)

			case GetLobby:
				msg.Reply <- h.lobbies[msg.Code] // May be nil

			case ListLobbies:
				out := make([]*lobby.Lobby, 0, len(h.lobbies))
				for _, lb := range h.lobbies {
					out = append(out, lb)
				}
				msg.Reply <- out

			case RemoveLobby:
				if lb := h.lobbies[msg.Code]; lb != nil {
					delete(h.lobbies, msg.Code)
					lb.Close()
					h.log.Info("lobby removed", zap.String("lobby", msg.Code))
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) create(msg CreateLobby) Created {
	code := GenerateCode()
	for h.lobbies[code] != nil {
		h.log.Debug("collision on code, regenerating", zap.String("code", code))
		code = GenerateCode()
	}

	g := engine.NewGame(code, msg.Settings, h.cfg.Game)
	host := g.Join(engine.JoinRequest{Name: msg.HostName, Avatar: msg.HostAvatar})

	lb := lobby.NewLobby(h.ctx, g, lobby.Config{
		Provider:     h.cfg.Provider,
		Log:          h.log,
		Notify:       h.notify,
		FetchTimeout: h.cfg.FetchTimeout,
	})
	h.lobbies[code] = lb
	h.log.Info("lobby created", zap.String("lobby", code), zap.String("host", host.Player.ID))
	return Created{Code: code, Lobby: lb, Host: host.Player}
}

func (h *Hub) shutdown() {
	for _, lb := range h.lobbies {
		lb.Close()
	}
	clear(h.lobbies)
	h.cancel()
}

func (h *Hub) post(ctx context.Context, m HubMsg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Create makes a lobby with a sanitised copy of settings and its host player.
func (h *Hub) Create(ctx context.Context, settings engine.Settings, hostName, hostAvatar string) (Created, error) {
	reply := make(chan Created, 1)
	if err := h.post(ctx, CreateLobby{Settings: settings, HostName: hostName, HostAvatar: hostAvatar, Reply: reply}); err != nil {
		return Created{}, err
	}
	select {
	case c := <-reply:
		return c, nil
	case <-h.done:
		return Created{}, ErrHubClosed
	case <-ctx.Done():
		return Created{}, ctx.Err()
	}
}

func (h *Hub) Get(ctx context.Context, code string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	if err := h.post(ctx, GetLobby{Code: code, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case lb := <-reply:
		if lb == nil {
			return nil, ErrLobbyNotFound
		}
		return lb, nil
	case <-h.done:
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Join looks a lobby up and joins it. An unknown code is the only failure.
func (h *Hub) Join(ctx context.Context, code string, req engine.JoinRequest) (engine.JoinResult, error) {
	lb, err := h.Get(ctx, code)
	if err != nil {
		return engine.JoinResult{}, err
	}
	return lb.Join(ctx, req)
}

func (h *Hub) Remove(ctx context.Context, code string) error {
	return h.post(ctx, RemoveLobby{Code: code})
}

func (h *Hub) Shutdown(ctx context.Context) error {
	return h.post(ctx, ShutdownHub{})
}

func (h *Hub) list(ctx context.Context) ([]*lobby.Lobby, error) {
	reply := make(chan []*lobby.Lobby, 1)
	if err := h.post(ctx, ListLobbies{Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case ls := <-reply:
		return ls, nil
	case <-h.done:
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Sweep removes lobbies that have had no clients and no activity for ttl.
// It returns the removed codes.
func (h *Hub) Sweep(ctx context.Context, ttl time.Duration) ([]string, error) {
	ls, err := h.list(ctx)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, lb := range ls {
		v, err := lb.Inspect(ctx)
		if errors.Is(err, lobby.ErrClosed) {
			removed = append(removed, lb.ID())
			_ = h.Remove(ctx, lb.ID())
			continue
		}
		if err != nil {
			return removed, err
		}
		if v.NumClients == 0 && time.Since(v.LastActive) >= ttl {
			removed = append(removed, lb.ID())
			if err := h.Remove(ctx, lb.ID()); err != nil {
				return removed, err
			}
		}
	}
	return removed, nil
}

func (h *Hub) sweepLoop(ttl time.Duration) {
	ticker := time.NewTicker(max(ttl/4, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			removed, err := h.Sweep(h.ctx, ttl)
			if err != nil && !errors.Is(err, ErrHubClosed) && !errors.Is(err, context.Canceled) {
				h.log.Warn("lobby sweep failed", zap.Error(err))
			}
			if len(removed) > 0 {
				h.log.Info("swept idle lobbies", zap.Strings("lobbies", removed))
			}
		}
	}
}

// GenerateCode returns a random lobby code.
func GenerateCode() string {
	code := make([]byte, CodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(CodeChars))))
		if err != nil {
			n = big.NewInt(int64(time.Now().UnixNano() % int64(len(CodeChars))))
		}
		code[i] = CodeChars[n.Int64()]
	}
	return string(code)
}
