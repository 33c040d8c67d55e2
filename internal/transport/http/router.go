// Package http — REST-поверхность ядра витрины. Аутентификация вынесена за
// пределы сервиса: все пользовательские маршруты требуют заголовок X-User-ID
// от вышестоящего шлюза.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

// NewRouter собирает маршруты сервиса.
func NewRouter(cartH *CartHandler, orderH *OrderHandler, logger *log.Entry) http.Handler {
	if logger == nil {
		logger = log.WithField("component", "http")
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Group(func(r chi.Router) {
		r.Use(RequireUser)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartH.Get)
			r.Post("/add", cartH.Add)
			r.Patch("/update", cartH.Update)
			r.Delete("/remove", cartH.Remove)
			r.Delete("/clear", cartH.Clear)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", orderH.Create)
			r.Get("/", orderH.List)
			r.Get("/{id}", orderH.Get)
			r.Patch("/{id}", orderH.UpdateStatus)
			r.Delete("/{id}", orderH.Delete)
		})
	})

	return r
}

// requestLogger пишет одну строку на запрос в структурированном виде.
func requestLogger(logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.WithFields(log.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			}).Info("request handled")
		})
	}
}
