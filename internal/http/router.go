package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/SteamVC/pairing-relay/internal/handlers"
)

func NewRouter(h *handlers.RoomHandler, sys *handlers.SystemHandler, wsHandler *handlers.WebSocketHandler, allowedOrigins []string, log *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// アクセスログは slog 経由で出力する
	reqLogger := middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(log.Handler(), slog.LevelInfo),
		NoColor: true,
	})
	r.Use(middleware.RequestID, middleware.RealIP, reqLogger, middleware.Recoverer)

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", sys.Health)
	r.Get("/stats", sys.Stats)

	r.Post("/create-room", h.Create)
	r.Route("/room", func(r chi.Router) {
		r.Get("/{roomCode}", h.Get)
		r.Delete("/{roomCode}", h.Delete)
	})

	// シグナリング用WebSocketエンドポイント
	r.Get("/ws", wsHandler.HandleWebSocket)

	return r
}
