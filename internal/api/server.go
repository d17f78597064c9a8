package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/chatline/internal/conversation"
)

type Server struct {
	router *chi.Mux
	svc    *conversation.Service
	srv    *http.Server
}

func NewServer(port int, apiToken string, svc *conversation.Service) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		svc:    svc,
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	router.Get("/health", s.health)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Use(middleware.AllowContentType("application/json"))

		r.Route("/conversations/{convID}", func(r chi.Router) {
			r.Get("/messages", s.listMessages)
			r.Post("/messages", s.sendMessage)
			r.Get("/days", s.listDays)
			r.Delete("/messages/{msgID}", s.deleteMessage)
			r.Post("/messages/{msgID}/truncate", s.truncate)
			r.Post("/messages/{msgID}/regenerate", s.regenerate)
			r.Get("/regenerating", s.regenerating)
			r.Delete("/regenerating", s.detach)
		})

		r.Route("/temporary", func(r chi.Router) {
			r.Post("/", s.enterTemporary)
			r.Get("/", s.temporaryStatus)
			r.Delete("/", s.exitTemporary)
			r.Get("/messages", s.listTemporary)
			r.Post("/messages", s.sendTemporary)
			r.Delete("/messages/{index}", s.deleteTemporary)
			r.Post("/messages/{index}/truncate", s.truncateTemporary)
			r.Post("/messages/{index}/regenerate", s.regenerateTemporary)
			r.Get("/regenerating", s.temporaryRegenerating)
		})

		r.Post("/render", s.render)
	})

	return s
}

func (s *Server) Start() error {
	slog.Info("API server starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
