package handlers

import (
	"encoding/json"
	"net/http"

	"carecast/internal/infra"
	"carecast/internal/service"
)

// App bundles the dependencies the HTTP layer needs. Everything is injected
// so tests can run handlers against in-memory collaborators.
type App struct {
	Jobs          *service.JobService
	Logger        infra.Logger
	WebhookSecret string
}

func NewApp(jobs *service.JobService, logger infra.Logger, webhookSecret string) *App {
	return &App{Jobs: jobs, Logger: logger, WebhookSecret: webhookSecret}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
