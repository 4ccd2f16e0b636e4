package http

import (
	"net/http"

	"contest-grading-service/internal/app"
)

// NewMux wires the JSON API, the leaderboard stream and the health probe.
func NewMux(service *app.GradingService) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	NewAPIHandler(service).Register(mux)
	mux.HandleFunc("GET /ws/leaderboard", NewWSHandler(service).ServeLeaderboard)
	return mux
}
