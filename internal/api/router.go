// Package api serves the engine over HTTP.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/julianstephens/daybook/internal/constants"
	"github.com/julianstephens/daybook/internal/service"
)

type Config struct {
	// AllowedOrigins enables CORS for the listed origins.
	AllowedOrigins []string
	// DefaultOwner is used when a request carries no owner header.
	DefaultOwner string
}

type ctxKey string

const ownerKey ctxKey = "owner_id"

func ownerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey).(string)
	return owner
}

// requireOwner resolves the owner of a request from the owner header.
func requireOwner(def string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner := strings.TrimSpace(r.Header.Get(constants.OwnerHeader))
			if owner == "" {
				owner = def
			}
			if owner == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing "+constants.OwnerHeader+" header")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey, owner)))
		})
	}
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", constants.OwnerHeader},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	})
}

func NewRouter(svc *service.Service, cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(corsHandler(cfg.AllowedOrigins))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	h := &Handler{Svc: svc}
	r.Group(func(r chi.Router) {
		r.Use(requireOwner(cfg.DefaultOwner))

		r.Route("/habits", func(r chi.Router) {
			r.Get("/", h.ListHabits)
			r.Post("/", h.AddHabit)
			r.Post("/reset", h.ResetHabits)
			r.Post("/{id}/toggle", h.ToggleHabit)
			r.Delete("/{id}", h.DeleteHabit)
		})

		r.Route("/periods/{kind}", func(r chi.Router) {
			r.Get("/", h.LoadPeriod)
			r.Get("/{key}", h.LoadPeriodKey)
			r.Post("/{key}/priorities", h.MutatePriorities)
			r.Get("/{key}/navigate", h.NavigatePeriod)
			r.Post("/{key}/import", h.ImportUnfinished)
		})

		r.Get("/months/{key}/status", h.MonthStatus)
		r.Get("/days/{key}/blocks", h.DayBlocks)

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.Settings)
			r.Put("/timezone", h.SetTimezone)
			r.Put("/week-start", h.SetWeekStart)
			r.Put("/day-times", h.SetDayTimes)
		})
	})

	return r
}
