package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/promptparty-backend/internal/hub"
	"github.com/DoyleJ11/promptparty-backend/internal/platform/logging"
	"github.com/DoyleJ11/promptparty-backend/internal/ws"
)

type Options struct {
	Log            *zap.Logger
	PublicBaseURL  string
	OriginPatterns []string
}

func SetupRoutes(h *hub.Hub, opts Options) http.Handler {
	log := logging.Resolve(opts.Log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Route("/lobbies", func(r chi.Router) {
		r.Post("/", CreateLobby(h, log))
		r.Get("/{code}", GetLobby(h))
		r.Post("/{code}/players", JoinLobby(h, log))
		r.Delete("/{code}/players/{player}", LeaveLobby(h))
		r.Get("/{code}/qr.png", QRCode(h, opts.PublicBaseURL))
	})
	r.Get("/ws", ws.Handler(h, ws.Options{Log: log, OriginPatterns: opts.OriginPatterns}))
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Debug("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("elapsed", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
