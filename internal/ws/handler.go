package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/promptparty-backend/internal/engine"
	"github.com/DoyleJ11/promptparty-backend/internal/hub"
	"github.com/DoyleJ11/promptparty-backend/internal/lobby"
	"github.com/DoyleJ11/promptparty-backend/internal/platform/logging"
	"github.com/DoyleJ11/promptparty-backend/internal/types"
)

const (
	writeTimeout = 3 * time.Second
	pingInterval = 20 * time.Second
	startTimeout = 15 * time.Second
)

type Options struct {
	Log *zap.Logger
	// OriginPatterns loosens the same-origin check, e.g. "localhost:*" in dev.
	OriginPatterns []string
}

func Handler(h *hub.Hub, opts Options) http.HandlerFunc {
	log := logging.Resolve(opts.Log)

	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		playerID := r.URL.Query().Get("player")
		if code == "" || playerID == "" {
			http.Error(w, "missing code or player", http.StatusBadRequest)
			return
		}

		lb, err := h.Get(r.Context(), code)
		if errors.Is(err, hub.ErrLobbyNotFound) {
			http.Error(w, "lobby not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "lobby unavailable", http.StatusServiceUnavailable)
			return
		}
		known, err := hasPlayer(r.Context(), lb, playerID)
		if err != nil {
			http.Error(w, "lobby unavailable", http.StatusServiceUnavailable)
			return
		}
		if !known {
			http.Error(w, "player not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		clientID := uuid.NewString()
		log := log.With(zap.String("lobby", code), zap.String("player", playerID), zap.String("client", clientID))

		out := make(chan lobby.Snapshot, 8)
		if err := lb.Post(r.Context(), lobby.Attach{ClientID: clientID, PlayerID: playerID, Outbox: out}); err != nil {
			return
		}
		defer func() { _ = lb.Post(context.Background(), lobby.Detach{ClientID: clientID}) }()
		log.Debug("client attached")

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go writeLoop(writeCtx, conn, out, log)

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("websocket read ended", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeError(r.Context(), conn, "bad json")
				continue
			}

			if cm.Type == types.MsgStartGame {
				go func() {
					ctx, cancel := context.WithTimeout(writeCtx, startTimeout)
					defer cancel()
					if err := lb.Start(ctx, playerID); err != nil {
						log.Debug("start refused", zap.Error(err))
						writeError(writeCtx, conn, err.Error())
					}
				}()
				continue
			}

			cmd, ok := toEngineCommand(playerID, cm)
			if !ok {
				writeError(r.Context(), conn, "unknown type")
				continue
			}
			if err := lb.Send(r.Context(), cmd); err != nil {
				return
			}
		}
	}
}

// writeLoop pushes snapshots until the lobby closes the outbox or the reader
// goes away. Pings keep half-open connections from lingering.
func writeLoop(ctx context.Context, conn *websocket.Conn, out <-chan lobby.Snapshot, log *zap.Logger) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return

		case snap, ok := <-out:
			if !ok {
				// Dropped by the lobby or the lobby shut down.
				conn.Close(websocket.StatusGoingAway, "lobby closed")
				return
			}
			msg := types.ServerMessage{Type: types.MsgStateSnapshot, Version: snap.Version, State: &snap.State}
			payload, err := json.Marshal(msg)
			if err != nil {
				log.Error("marshal snapshot", zap.Error(err))
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = conn.Write(wctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				log.Debug("snapshot write failed", zap.Error(err))
			}

		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil && ctx.Err() == nil {
				conn.Close(websocket.StatusGoingAway, "ping timeout")
				return
			}
		}
	}
}

func writeError(ctx context.Context, conn *websocket.Conn, msg string) {
	payload, _ := json.Marshal(types.ServerMessage{Type: types.MsgError, Error: msg})
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, payload)
}

func hasPlayer(ctx context.Context, lb *lobby.Lobby, playerID string) (bool, error) {
	v, err := lb.Inspect(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range v.State.Players {
		if p.ID == playerID {
			return true, nil
		}
	}
	return false, nil
}

func toEngineCommand(playerID string, m types.ClientMessage) (engine.Command, bool) {
	switch m.Type {
	case types.MsgUpdateProfile:
		return engine.Command{Type: engine.CmdUpdateProfile, PlayerID: playerID, Name: m.Name, Avatar: m.Avatar}, true
	case types.MsgUpdateSettings:
		if m.Settings == nil {
			return engine.Command{}, false
		}
		return engine.Command{Type: engine.CmdUpdateSettings, PlayerID: playerID, Settings: *m.Settings}, true
	case types.MsgSubmitCard:
		return engine.Command{Type: engine.CmdSubmitCard, PlayerID: playerID, CardID: m.CardID}, true
	case types.MsgSubmitVote:
		return engine.Command{Type: engine.CmdSubmitSlotVote, PlayerID: playerID, Slots: m.Ranking}, true
	default:
		return engine.Command{}, false
	}
}
