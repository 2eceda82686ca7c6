package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/DoyleJ11/promptparty-backend/internal/engine"
	"github.com/DoyleJ11/promptparty-backend/internal/hub"
)

const qrSize = 320

type CreateLobbyRequest struct {
	Name     string           `json:"name"`
	Avatar   string           `json:"avatar"`
	Settings *engine.Settings `json:"settings,omitempty"`
}

type JoinLobbyRequest struct {
	// PlayerID rejoins as an existing player.
	PlayerID  string `json:"player_id,omitempty"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar"`
	Spectator bool   `json:"spectator"`
}

type PlayerResponse struct {
	Code      string        `json:"code"`
	PlayerID  string        `json:"player_id"`
	Player    engine.Player `json:"player"`
	Spectator bool          `json:"spectator"`
	Note      engine.Note   `json:"note,omitempty"`
}

type LobbyResponse struct {
	Code     string          `json:"code"`
	Phase    engine.Phase    `json:"phase"`
	Settings engine.Settings `json:"settings"`
	Players  int             `json:"players"`
	Round    int             `json:"round,omitempty"`
}

func CreateLobby(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateLobbyRequest
		if !decodeBody(w, r, &req) {
			return
		}
		settings := engine.DefaultSettings()
		if req.Settings != nil {
			settings = *req.Settings
		}

		created, err := h.Create(r.Context(), settings, req.Name, req.Avatar)
		if err != nil {
			log.Error("create lobby failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "failed to create lobby")
			return
		}

		writeJSON(w, http.StatusCreated, PlayerResponse{
			Code:     created.Code,
			PlayerID: created.Host.ID,
			Player:   created.Host,
		})
	}
}

func JoinLobby(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := lobbyCode(r)
		var req JoinLobbyRequest
		if !decodeBody(w, r, &req) {
			return
		}

		res, err := h.Join(r.Context(), code, engine.JoinRequest{
			ExistingID: req.PlayerID,
			Name:       req.Name,
			Avatar:     req.Avatar,
			Spectator:  req.Spectator,
		})
		if errors.Is(err, hub.ErrLobbyNotFound) {
			writeError(w, http.StatusNotFound, "lobby not found")
			return
		}
		if err != nil {
			log.Error("join lobby failed", zap.String("lobby", code), zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "failed to join lobby")
			return
		}

		status := http.StatusOK
		if res.Created {
			status = http.StatusCreated
		}
		writeJSON(w, status, PlayerResponse{
			Code:      code,
			PlayerID:  res.Player.ID,
			Player:    res.Player,
			Spectator: res.Spectator,
			Note:      res.Note,
		})
	}
}

// LeaveLobby disconnects a player. The player keeps their seat and score and
// can come back with their id.
func LeaveLobby(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb, err := h.Get(r.Context(), lobbyCode(r))
		if errors.Is(err, hub.ErrLobbyNotFound) {
			writeError(w, http.StatusNotFound, "lobby not found")
			return
		}
		if err == nil {
			err = lb.Leave(r.Context(), chi.URLParam(r, "player"))
		}
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "lobby unavailable")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func GetLobby(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := lobbyCode(r)
		lb, err := h.Get(r.Context(), code)
		if errors.Is(err, hub.ErrLobbyNotFound) {
			writeError(w, http.StatusNotFound, "lobby not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "lobby unavailable")
			return
		}
		v, err := lb.Inspect(r.Context())
		if err != nil {
			writeError(w, http.StatusNotFound, "lobby not found")
			return
		}

		resp := LobbyResponse{
			Code:     code,
			Phase:    v.State.Phase,
			Settings: v.State.Settings,
			Players:  len(v.State.Players),
		}
		if v.State.Round != nil {
			resp.Round = v.State.Round.Number
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// QRCode renders a PNG pointing at the join page of a lobby. Without a
// configured public URL it is derived from the request.
func QRCode(h *hub.Hub, publicBaseURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := lobbyCode(r)
		if _, err := h.Get(r.Context(), code); err != nil {
			writeError(w, http.StatusNotFound, "lobby not found")
			return
		}

		png, err := qrcode.Encode(JoinURL(r, publicBaseURL, code), qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_, _ = w.Write(png)
	}
}

func JoinURL(r *http.Request, publicBaseURL, code string) string {
	base := strings.TrimRight(publicBaseURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host
	}
	return base + "/join/" + code
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func lobbyCode(r *http.Request) string {
	return strings.ToUpper(chi.URLParam(r, "code"))
}

// decodeBody accepts an empty body as the zero value.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, http.StatusBadRequest, "bad json")
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
