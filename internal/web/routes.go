package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	attendanceHandler := handlers.NewAttendanceHandler(s.service, s.logger)
	configHandler := handlers.NewConfigHandler(s.config, s.service.Capability())

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(s.config.Auth.JWTSecret))

			r.Get("/config", configHandler.Get)

			// Recognition
			r.Post("/recognize", attendanceHandler.Recognize)
			r.Get("/diagnostics", attendanceHandler.Diagnostics)

			// Attendance
			r.Get("/attendance/summary", attendanceHandler.Summary)
			r.Post("/students/{id}/excuse", attendanceHandler.Excuse)
			r.Get("/students/{id}/history", attendanceHandler.History)
		})
	})

	// Student photos and face samples
	if s.config.Media.Root != "" {
		prefix := s.config.Media.RoutePrefix()
		files := http.StripPrefix(prefix, http.FileServer(http.Dir(s.config.Media.Root)))
		s.router.With(middleware.RequireAuth(s.config.Auth.JWTSecret)).Get(prefix+"*", files.ServeHTTP)
	}
}
