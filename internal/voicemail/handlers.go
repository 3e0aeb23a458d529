// Package voicemail exposes the caller's voicemail boxes and messages. The
// VoIP.ms payloads are passed through untouched; scoping happens by always
// sending the session's client id upstream, never a caller-supplied one.
package voicemail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"voipgate-backend/internal/apperror"
	"voipgate-backend/internal/auth"
	"voipgate-backend/internal/response"
	"voipgate-backend/internal/voipms"
)

type Mailbox interface {
	GetVoicemails(ctx context.Context, clientID string, extra map[string]string) (map[string]any, error)
	GetVoicemailFolders(ctx context.Context, clientID string, extra map[string]string) (map[string]any, error)
	GetVoicemailMessages(ctx context.Context, clientID string, extra map[string]string) (map[string]any, error)
	GetVoicemailMessageFile(ctx context.Context, clientID, messageNum string, extra map[string]string) (*voipms.VoicemailFileResponse, error)
	DelVoicemailMessages(ctx context.Context, clientID, messageNum string, extra map[string]string) (map[string]any, error)
}

type Handler struct {
	api Mailbox
}

func NewHandler(api Mailbox) *Handler {
	return &Handler{api: api}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Use(auth.Middleware)
	r.Get("/", h.ListBoxes)
	r.Get("/folders", h.ListFolders)
	r.Get("/messages", h.ListMessages)
	r.Get("/messages/{id}/file", h.MessageFile)
	r.Delete("/messages/{id}", h.DeleteMessage)
}

func (h *Handler) ListBoxes(w http.ResponseWriter, r *http.Request) {
	h.passthrough(w, r, h.api.GetVoicemails)
}

func (h *Handler) ListFolders(w http.ResponseWriter, r *http.Request) {
	h.passthrough(w, r, h.api.GetVoicemailFolders)
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	h.passthrough(w, r, h.api.GetVoicemailMessages)
}

// MessageFile streams a voicemail recording. Upstream returns the audio as
// base64; it is decoded and served as audio/mpeg.
func (h *Handler) MessageFile(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		response.Fail(w, http.StatusUnauthorized, "No token provided")
		return
	}

	data, err := h.api.GetVoicemailMessageFile(r.Context(), claims.VoipmsClientID, chi.URLParam(r, "id"), queryParams(r.URL.Query()))
	if err != nil {
		log.Printf("voicemail: getVoicemailMessageFile failed: %v", err)
		response.Error(w, fmt.Errorf("%w: %v", apperror.ErrUpstream, err))
		return
	}
	if data.Status != voipms.StatusSuccess || data.Message.Data == "" {
		response.Fail(w, http.StatusNotFound, "Voicemail message not found")
		return
	}

	audio, err := base64.StdEncoding.DecodeString(data.Message.Data)
	if err != nil {
		log.Printf("voicemail: decoding message audio failed: %v", err)
		response.Fail(w, http.StatusBadGateway, "Invalid audio payload from VoIP.ms")
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	_, _ = w.Write(audio)
}

func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		response.Fail(w, http.StatusUnauthorized, "No token provided")
		return
	}

	data, err := h.api.DelVoicemailMessages(r.Context(), claims.VoipmsClientID, chi.URLParam(r, "id"), queryParams(r.URL.Query()))
	if err != nil {
		log.Printf("voicemail: delMessages failed: %v", err)
		response.Error(w, fmt.Errorf("%w: %v", apperror.ErrUpstream, err))
		return
	}
	response.Data(w, data)
}

type passthroughCall func(ctx context.Context, clientID string, extra map[string]string) (map[string]any, error)

func (h *Handler) passthrough(w http.ResponseWriter, r *http.Request, call passthroughCall) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		response.Fail(w, http.StatusUnauthorized, "No token provided")
		return
	}

	data, err := call(r.Context(), claims.VoipmsClientID, queryParams(r.URL.Query()))
	if err != nil {
		log.Printf("voicemail: upstream call failed: %v", err)
		response.Error(w, fmt.Errorf("%w: %v", apperror.ErrUpstream, err))
		return
	}
	response.Data(w, data)
}

func queryParams(q url.Values) map[string]string {
	extra := map[string]string{}
	for key, values := range q {
		if key == "client" || len(values) == 0 {
			continue
		}
		extra[key] = values[0]
	}
	return extra
}
