package api

import (
	_ "embed"
	"log"
	"net/http"
)

//go:embed dashboard.html
var dashboardHTML []byte

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(dashboardHTML); err != nil {
		log.Printf("[api] write dashboard: %v", err)
	}
}
