// Package dids lists the phone numbers owned by the caller's VoIP.ms client.
package dids

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"voipgate-backend/internal/apperror"
	"voipgate-backend/internal/auth"
	"voipgate-backend/internal/response"
	"voipgate-backend/internal/voipms"
)

type Directory interface {
	GetDIDsInfo(ctx context.Context, clientID string) (*voipms.DIDsResponse, error)
}

type Handler struct {
	api Directory
}

func NewHandler(api Directory) *Handler {
	return &Handler{api: api}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Use(auth.Middleware)
	r.Get("/", h.List)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		response.Fail(w, http.StatusUnauthorized, "No token provided")
		return
	}

	data, err := h.api.GetDIDsInfo(r.Context(), claims.VoipmsClientID)
	if err != nil {
		log.Printf("dids: getDIDsInfo failed: %v", err)
		response.Error(w, fmt.Errorf("%w: %v", apperror.ErrUpstream, err))
		return
	}
	if data.DIDs == nil {
		data.DIDs = []voipms.DID{}
	}
	response.Data(w, data)
}
