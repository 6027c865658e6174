package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/fabline-dev/shift-planner/backend/internal/config"
	"github.com/fabline-dev/shift-planner/backend/internal/domain"
	"github.com/fabline-dev/shift-planner/backend/internal/metrics"
	"github.com/fabline-dev/shift-planner/backend/internal/planner"
	"github.com/fabline-dev/shift-planner/backend/internal/realtime"
	"github.com/fabline-dev/shift-planner/backend/internal/reconcile"
	"github.com/fabline-dev/shift-planner/backend/internal/repository"
)

type Handler struct {
	validate      *validator.Validate
	config        *config.Config
	repository    *repository.Repository
	translator    ut.Translator
	hub           *realtime.Hub
	wsServer      *realtime.Server
	reconciler    *reconcile.Reconciler
	coordinator   *planner.Coordinator
	notifyChannel *amqp.Channel
	redisClient   *redis.Client
	metrics       *metrics.Metrics

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo *repository.Repository, hub *realtime.Hub, notifyCh *amqp.Channel, rdb *redis.Client) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	en := en.New()
	uni := ut.New(en, en)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	m := metrics.New(func() float64 {
		_, connections := hub.Counts()
		return float64(connections)
	})

	return &Handler{
		validate:      validate,
		config:        cfg,
		repository:    repo,
		translator:    trans,
		hub:           hub,
		wsServer:      realtime.NewServer(hub),
		reconciler:    reconcile.New(repo),
		coordinator:   planner.NewCoordinator(repo),
		notifyChannel: notifyCh,
		redisClient:   rdb,
		metrics:       m,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	// The websocket endpoint authenticates in-band via the auth message.
	h.Mux.Handle("/ws", h.wsServer)
	h.Mux.Handle("/metrics", promhttp.HandlerFor(h.metrics.Registry, promhttp.HandlerOpts{}))

	// Everything below requires a logged-in planner.
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)

		r.Get("/auth/me", h.Me)

		r.Route("/planning", func(r chi.Router) {
			r.Post("/sync", h.SyncChanges)
			r.Get("/data/{date}", h.GetPlanningData)
			r.Get("/status", h.GetStatus)
			r.Route("/snapshots", func(r chi.Router) {
				r.Post("/", h.CreateSnapshot)
				r.Post("/{id}/restore", h.RestoreSnapshot)
			})
			r.Post("/conflicts/{id}/resolve", h.ResolveConflict)
		})

		r.Route("/plan", func(r chi.Router) {
			r.Post("/generate", h.GeneratePlan)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.plan)
				r.Get("/", h.GetPlan)
				r.Post("/commit", h.CommitPlan)
				r.With(h.RequiredRole([]domain.Role{domain.RoleSupervisor, domain.RoleAdmin})).Delete("/", h.DeletePlan)
			})
		})
	})
}
