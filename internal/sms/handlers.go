// Package sms mediates SMS/MMS access so a session can only read or act on
// messages belonging to DIDs its VoIP.ms client currently owns. The owned
// set is refetched on every request; ownership can change upstream at any
// time, so caching it would weaken the authorization check.
package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"voipgate-backend/internal/apperror"
	"voipgate-backend/internal/auth"
	"voipgate-backend/internal/response"
	"voipgate-backend/internal/voipms"
)

const (
	defaultLimit    = 1000
	defaultTimezone = "-5"
)

// Messaging is the slice of the upstream API this package needs.
type Messaging interface {
	GetDIDsInfo(ctx context.Context, clientID string) (*voipms.DIDsResponse, error)
	GetSMS(ctx context.Context, p voipms.SMSListParams) (*voipms.SMSResponse, error)
	GetMMS(ctx context.Context, p voipms.SMSListParams) (*voipms.MMSResponse, error)
	SendSMS(ctx context.Context, p voipms.SendSMSParams) (*voipms.SendResponse, error)
	SendMMS(ctx context.Context, p voipms.SendMMSParams) (*voipms.SendResponse, error)
	DeleteSMS(ctx context.Context, id string) (*voipms.BasicResponse, error)
}

type Handler struct {
	api      Messaging
	validate *validator.Validate
}

func NewHandler(api Messaging) *Handler {
	return &Handler{api: api, validate: validator.New()}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Use(auth.Middleware)
	r.Get("/", h.ListSMS)
	r.Post("/", h.SendSMS)
	r.Get("/mms", h.ListMMS)
	r.Post("/mms", h.SendMMS)
	r.Delete("/{id}", h.DeleteSMS)
}

// ownedDIDs resolves the caller's current DID set. A non-success upstream
// status means the client owns nothing right now, which is not an error.
func (h *Handler) ownedDIDs(ctx context.Context, clientID string) ([]string, error) {
	dids, err := h.api.GetDIDsInfo(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrUpstream, err)
	}
	if dids.Status != voipms.StatusSuccess {
		return nil, nil
	}
	owned := make([]string, 0, len(dids.DIDs))
	for _, d := range dids.DIDs {
		owned = append(owned, d.DID)
	}
	return owned, nil
}

// ListSMS returns the caller's messages within a date window. Upstream
// results are intersected with the owned DID set locally; did/contact
// filters are also applied locally because upstream filtering by those
// fields is unreliable.
func (h *Handler) ListSMS(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		response.Fail(w, http.StatusUnauthorized, "No token provided")
		return
	}

	owned, err := h.ownedDIDs(r.Context(), claims.VoipmsClientID)
	if err != nil {
		log.Printf("sms: resolving DIDs failed: %v", err)
		response.Error(w, err)
		return
	}
	if len(owned) == 0 {
		response.Data(w, voipms.SMSResponse{Status: voipms.StatusSuccess, SMS: []voipms.SMS{}})
		return
	}

	q := r.URL.Query()
	requestedDID := q.Get("did")
	if requestedDID != "" && !slices.Contains(owned, requestedDID) {
		response.Fail(w, http.StatusForbidden, "You do not own this DID")
		return
	}
	requestedContact := q.Get("contact")

	from, to := pickDateRange(q)
	params := voipms.SMSListParams{
		Client:   claims.VoipmsClientID,
		Limit:    parseLimit(q),
		From:     from,
		To:       to,
		Timezone: pickTimezone(q),
		Extra:    sanitizeExtraParams(q),
	}

	data, err := h.api.GetSMS(r.Context(), params)
	if err != nil {
		log.Printf("sms: getSMS failed: %v", err)
		response.Error(w, fmt.Errorf("%w: %v", apperror.ErrUpstream, err))
		return
	}

	// A caller-supplied window may be too wide for upstream; retry once with
	// the known-good default window, discarding the caller's range.
	if data.Status == voipms.StatusInvalidDateRange {
		params.From, params.To = defaultDateRange()
		data, err = h.api.GetSMS(r.Context(), params)
		if err != nil {
			log.Printf("sms: getSMS fallback failed: %v", err)
			response.Error(w, fmt.Errorf("%w: %v", apperror.ErrUpstream, err))
			return
		}
	}

	if data.Status == voipms.StatusSuccess {
		total := len(data.SMS)
		data.SMS = filterSMS(data.SMS, owned, requestedDID, requestedContact)
		log.Printf("sms: %d total, %d after ownership filter", total, len(data.SMS))
	}
	if data.SMS == nil {
		data.SMS = []voipms.SMS{}
	}

	w.Header().Set("Cache-Control", "no-store")
	response.Data(w, data)
}

// ListMMS mirrors ListSMS; getMMS takes no date window upstream.
func (h *Handler) ListMMS(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		response.Fail(w, http.StatusUnauthorized, "No token provided")
		return
	}

	owned, err := h.ownedDIDs(r.Context(), claims.VoipmsClientID)
	if err != nil {
		log.Printf("sms: resolving DIDs failed: %v", err)
		response.Error(w, err)
		return
	}
	if len(owned) == 0 {
		response.Data(w, voipms.MMSResponse{Status: voipms.StatusSuccess, MMS: []voipms.MMS{}})
		return
	}

	q := r.URL.Query()
	requestedDID := q.Get("did")
	if requestedDID != "" && !slices.Contains(owned, requestedDID) {
		response.Fail(w, http.StatusForbidden, "You do not own this DID")
		return
	}
	requestedContact := q.Get("contact")

	params := voipms.SMSListParams{
		Client:   claims.VoipmsClientID,
		Limit:    parseLimit(q),
		Timezone: pickTimezone(q),
		Extra:    sanitizeExtraParams(q),
	}

	data, err := h.api.GetMMS(r.Context(), params)
	if err != nil {
		log.Printf("sms: getMMS failed: %v", err)
		response.Error(w, fmt.Errorf("%w: %v", apperror.ErrUpstream, err))
		return
	}

	if data.Status == voipms.StatusSuccess {
		data.MMS = filterMMS(data.MMS, owned, requestedDID, requestedContact)
	}
	if data.MMS == nil {
		data.MMS = []voipms.MMS{}
	}

	w.Header().Set("Cache-Control", "no-store")
	response.Data(w, data)
}

type sendSMSRequest struct {
	DID     string `json:"did" validate:"required"`
	Dst     string `json:"dst" validate:"required"`
	Message string `json:"message" validate:"required"`
}

type sendMMSRequest struct {
	DID     string `json:"did" validate:"required"`
	Dst     string `json:"dst" validate:"required"`
	Message string `json:"message"`
	Media1  string `json:"media1"`
}

// SendSMS requires the source DID to be in the owned set before the
// upstream send is attempted.
func (h *Handler) SendSMS(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		response.Fail(w, http.StatusUnauthorized, "No token provided")
		return
	}

	var req sendSMSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Fail(w, http.StatusBadRequest, "did, dst and message are required")
		return
	}

	if !h.requireOwnedDID(w, r, claims.VoipmsClientID, req.DID) {
		return
	}

	data, err := h.api.SendSMS(r.Context(), voipms.SendSMSParams{
		DID: req.DID, Dst: req.Dst, Message: req.Message,
	})
	if err != nil {
		log.Printf("sms: sendSMS failed: %v", err)
		response.Error(w, fmt.Errorf("%w: %v", apperror.ErrUpstream, err))
		return
	}
	response.Data(w, data)
}

// SendMMS additionally validates the media URL, since VoIP.ms dereferences
// it server-side.
func (h *Handler) SendMMS(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		response.Fail(w, http.StatusUnauthorized, "No token provided")
		return
	}

	var req sendMMSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Fail(w, http.StatusBadRequest, "did and dst are required")
		return
	}

	if !h.requireOwnedDID(w, r, claims.VoipmsClientID, req.DID) {
		return
	}

	media, err := ValidateMediaURL(req.Media1)
	if err != nil {
		response.Error(w, err)
		return
	}

	data, err := h.api.SendMMS(r.Context(), voipms.SendMMSParams{
		DID: req.DID, Dst: req.Dst, Message: req.Message, Media1: media,
	})
	if err != nil {
		var httpErr *voipms.HTTPError
		if errors.As(err, &httpErr) {
			// Preserve the upstream payload for client debugging.
			response.JSON(w, http.StatusBadGateway, map[string]any{
				"success":            false,
				"code":               "voipms_error",
				"error":              "VoIP.ms sendMMS failed",
				"voipms":             json.RawMessage(httpErr.Body),
				"voipms_http_status": httpErr.StatusCode,
			})
			return
		}
		log.Printf("sms: sendMMS failed: %v", err)
		response.Error(w, fmt.Errorf("%w: %v", apperror.ErrUpstream, err))
		return
	}
	response.Data(w, data)
}

// DeleteSMS confirms the message exists within the caller's owned messages
// before issuing the upstream delete. The confirmation listing is windowed,
// so messages outside the (default 90-day) range report NotFound.
func (h *Handler) DeleteSMS(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		response.Fail(w, http.StatusUnauthorized, "No token provided")
		return
	}
	id := chi.URLParam(r, "id")

	owned, err := h.ownedDIDs(r.Context(), claims.VoipmsClientID)
	if err != nil {
		log.Printf("sms: resolving DIDs failed: %v", err)
		response.Error(w, err)
		return
	}
	if len(owned) == 0 {
		response.Fail(w, http.StatusForbidden, "No DIDs found for this account")
		return
	}

	q := r.URL.Query()
	from, to := pickDateRange(q)
	listing, err := h.api.GetSMS(r.Context(), voipms.SMSListParams{
		Client:   claims.VoipmsClientID,
		Limit:    defaultLimit,
		From:     from,
		To:       to,
		Timezone: pickTimezone(q),
	})
	if err != nil {
		log.Printf("sms: getSMS failed: %v", err)
		response.Error(w, fmt.Errorf("%w: %v", apperror.ErrUpstream, err))
		return
	}
	if listing.Status != voipms.StatusSuccess {
		response.Fail(w, http.StatusNotFound, "SMS not found (or not accessible in this date range)")
		return
	}

	found := false
	for _, msg := range listing.SMS {
		if msg.ID == id && slices.Contains(owned, msg.DID) {
			found = true
			break
		}
	}
	if !found {
		response.Fail(w, http.StatusNotFound, "SMS not found (or not owned by you)")
		return
	}

	data, err := h.api.DeleteSMS(r.Context(), id)
	if err != nil {
		log.Printf("sms: deleteSMS failed: %v", err)
		response.Error(w, fmt.Errorf("%w: %v", apperror.ErrUpstream, err))
		return
	}
	response.Data(w, data)
}

// requireOwnedDID enforces the write precondition: 403 when the account has
// no DIDs or the target DID is not owned. Returns false when the request
// was already answered.
func (h *Handler) requireOwnedDID(w http.ResponseWriter, r *http.Request, clientID, did string) bool {
	owned, err := h.ownedDIDs(r.Context(), clientID)
	if err != nil {
		log.Printf("sms: resolving DIDs failed: %v", err)
		response.Error(w, err)
		return false
	}
	if len(owned) == 0 {
		response.Fail(w, http.StatusForbidden, "No DIDs found for this account")
		return false
	}
	if !slices.Contains(owned, did) {
		response.Fail(w, http.StatusForbidden, "You do not own this DID")
		return false
	}
	return true
}

func filterSMS(msgs []voipms.SMS, owned []string, did, contact string) []voipms.SMS {
	out := msgs[:0]
	for _, m := range msgs {
		if !slices.Contains(owned, m.DID) {
			continue
		}
		if did != "" && m.DID != did {
			continue
		}
		if contact != "" && m.Contact != contact {
			continue
		}
		out = append(out, m)
	}
	return out
}

func filterMMS(msgs []voipms.MMS, owned []string, did, contact string) []voipms.MMS {
	out := msgs[:0]
	for _, m := range msgs {
		if !slices.Contains(owned, m.DID) {
			continue
		}
		if did != "" && m.DID != did {
			continue
		}
		if contact != "" && m.Contact != contact {
			continue
		}
		out = append(out, m)
	}
	return out
}

func parseLimit(q url.Values) int {
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		return n
	}
	return defaultLimit
}

func pickTimezone(q url.Values) string {
	if tz := q.Get("timezone"); tz != "" {
		return tz
	}
	return defaultTimezone
}

// sanitizeExtraParams forwards leftover query params upstream, minus the
// ones handled here and the did/contact filters, which are applied locally.
func sanitizeExtraParams(q url.Values) map[string]string {
	reserved := map[string]bool{
		"client": true, "limit": true, "timezone": true,
		"from": true, "to": true, "date_from": true, "date_to": true,
		"did": true, "contact": true,
	}
	extra := map[string]string{}
	for key, values := range q {
		if reserved[key] || len(values) == 0 {
			continue
		}
		extra[key] = values[0]
	}
	return extra
}
