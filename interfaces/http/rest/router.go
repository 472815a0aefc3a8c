package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"carpool-backend/application/services"
	"carpool-backend/interfaces/http/rest/handlers"
	"carpool-backend/interfaces/http/rest/middleware"
)

// Router creates and configures the HTTP router
type Router struct {
	users      *services.UserService
	carpools   *services.CarpoolService
	enableCORS bool
	logger     *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	users *services.UserService,
	carpools *services.CarpoolService,
	enableCORS bool,
	logger *zap.Logger,
) *Router {
	return &Router{
		users:      users,
		carpools:   carpools,
		enableCORS: enableCORS,
		logger:     logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	if rt.enableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	// Health check
	router.Get("/health", rt.healthCheck)

	userHandler := handlers.NewUserHandler(rt.users, rt.logger)
	carpoolHandler := handlers.NewCarpoolHandler(rt.carpools, rt.logger)

	router.Route("/user", func(r chi.Router) {
		r.Post("/", userHandler.CreateUser)
		r.Get("/{id}", userHandler.GetUser)
		r.Put("/{id}", userHandler.UpdateLocation)
	})

	router.Route("/carpool", func(r chi.Router) {
		r.Post("/", carpoolHandler.CreateCarpool)
		r.Get("/available", carpoolHandler.ListAvailable)
		r.Get("/available/genre/{genre}", carpoolHandler.ListAvailable)
		r.Get("/participants/{id}", userHandler.ListParticipations)
		r.Get("/{id}", carpoolHandler.GetCarpool)
		r.Get("/{id}/participants", carpoolHandler.GetParticipants)
		r.Post("/{id}/join", carpoolHandler.JoinCarpool)
		r.Post("/{id}/start", carpoolHandler.StartCarpool)
		r.Post("/{id}/end", carpoolHandler.EndCarpool)
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
