package apihttp

import (
	"net/http"
)

type deliveryHealth struct {
	Status           string `json:"status"`
	ResolveCacheSize int    `json:"resolveCacheSize"`
	ActiveManifests  int    `json:"activeManifestJobs"`
	WSClients        int    `json:"wsClients"`
}

// handleDeliveryHealth reports a cheap snapshot of the delivery pipeline
// for liveness probes and the dashboard.
// GET /internal/health/delivery
func (s *Server) handleDeliveryHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}

	health := deliveryHealth{Status: "ok"}
	if s.resolveCache != nil {
		health.ResolveCacheSize = s.resolveCache.Len()
	}
	if s.manifests != nil {
		health.ActiveManifests = s.manifests.activeJobs()
	}
	if s.wsHub != nil {
		health.WSClients = s.wsHub.clientCount()
	}
	writeJSON(w, http.StatusOK, health)
}
