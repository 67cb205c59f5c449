package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// resultStream streams new-result envelopes for one participation over a
// websocket. Only legal rated results ever reach the hub.
func (s *HttpServer) resultStream(w http.ResponseWriter, r *http.Request) {
	participationID, err := uuid.Parse(chi.URLParam(r, "participationId"))
	if err != nil {
		http.Error(w, "invalid participation id", http.StatusBadRequest)
		return
	}
	s.hub.ServeWS(w, r, participationID)
}
