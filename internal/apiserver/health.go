package apiserver

import "net/http"

// Health handles GET /healthz: a liveness probe, 200 once the router is
// serving — there is no external dependency to degrade on.
func Health(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
