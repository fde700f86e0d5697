package sys

import (
	"context"
	"net/http"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

func init() {
	OnClientReady(func(ctx context.Context, client *bot.Client) {
		RegisterDaemon(LogHealth, func(ctx context.Context) (bool, func(), func()) {
			return StartHealthServer(ctx, client)
		})
	})
}

type healthStatus struct {
	Status       string `json:"status"`
	Uptime       string `json:"uptime"`
	Guilds       int    `json:"guilds"`
	JoinsTracked int    `json:"joins_tracked"`
}

// StartHealthServer serves the liveness endpoint used by the hosting
// platform to keep the process alive.
func StartHealthServer(ctx context.Context, client *bot.Client) (bool, func(), func()) {
	if GlobalConfig == nil || GlobalConfig.HealthAddr == "" {
		return false, nil, nil
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		joins, _ := CountInviteJoins(r.Context())
		guilds := 0
		for range client.Caches.Guilds() {
			guilds++
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, healthStatus{
			Status:       "ok",
			Uptime:       time.Since(StartupTime).Round(time.Second).String(),
			Guilds:       guilds,
			JoinsTracked: joins,
		})
	})

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.PlainText(w, r, "ok")
	})

	server := &http.Server{
		Addr:         GlobalConfig.HealthAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return true, func() {
			LogHealth(MsgHealthListening, server.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				LogHealth(MsgHealthServeFail, err)
			}
		}, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}
}
