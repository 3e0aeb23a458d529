package sms_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voipgate-backend/internal/auth"
	"voipgate-backend/internal/sms"
	"voipgate-backend/internal/voipms"
)

type stubAPI struct {
	dids    *voipms.DIDsResponse
	didsErr error

	// getSMS replies are consumed in order; the last one repeats.
	smsReplies  []*voipms.SMSResponse
	getSMSCalls []voipms.SMSListParams

	mms         *voipms.MMSResponse
	getMMSCalls int

	sendSMSCalls int
	sendMMSCalls int
	sendMMSParam voipms.SendMMSParams
	sendMMSErr   error

	deleteCalls int
}

func (a *stubAPI) GetDIDsInfo(context.Context, string) (*voipms.DIDsResponse, error) {
	if a.didsErr != nil {
		return nil, a.didsErr
	}
	return a.dids, nil
}

func (a *stubAPI) GetSMS(_ context.Context, p voipms.SMSListParams) (*voipms.SMSResponse, error) {
	a.getSMSCalls = append(a.getSMSCalls, p)
	i := len(a.getSMSCalls) - 1
	if i >= len(a.smsReplies) {
		i = len(a.smsReplies) - 1
	}
	reply := *a.smsReplies[i]
	reply.SMS = append([]voipms.SMS(nil), a.smsReplies[i].SMS...)
	return &reply, nil
}

func (a *stubAPI) GetMMS(context.Context, voipms.SMSListParams) (*voipms.MMSResponse, error) {
	a.getMMSCalls++
	reply := *a.mms
	reply.MMS = append([]voipms.MMS(nil), a.mms.MMS...)
	return &reply, nil
}

func (a *stubAPI) SendSMS(context.Context, voipms.SendSMSParams) (*voipms.SendResponse, error) {
	a.sendSMSCalls++
	return &voipms.SendResponse{Status: voipms.StatusSuccess}, nil
}

func (a *stubAPI) SendMMS(_ context.Context, p voipms.SendMMSParams) (*voipms.SendResponse, error) {
	a.sendMMSCalls++
	a.sendMMSParam = p
	if a.sendMMSErr != nil {
		return nil, a.sendMMSErr
	}
	return &voipms.SendResponse{Status: voipms.StatusSuccess}, nil
}

func (a *stubAPI) DeleteSMS(context.Context, string) (*voipms.BasicResponse, error) {
	a.deleteCalls++
	return &voipms.BasicResponse{Status: voipms.StatusSuccess}, nil
}

func ownedDIDs(nums ...string) *voipms.DIDsResponse {
	resp := &voipms.DIDsResponse{Status: voipms.StatusSuccess}
	for _, n := range nums {
		resp.DIDs = append(resp.DIDs, voipms.DID{DID: n})
	}
	return resp
}

func doRequest(h *sms.Handler, method, target, body string) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	// Bypass the JWT middleware; inject the claim set directly.
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := &auth.Claims{VoipmsClientID: "100123"}
			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	})
	router.Get("/", h.ListSMS)
	router.Post("/", h.SendSMS)
	router.Get("/mms", h.ListMMS)
	router.Post("/mms", h.SendMMS)
	router.Delete("/{id}", h.DeleteSMS)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func listedSMS(t *testing.T, res *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var body struct {
		Success bool `json:"success"`
		Data    struct {
			SMS []map[string]any `json:"sms"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.True(t, body.Success)
	return body.Data.SMS
}

func TestListSMSFiltersToOwnedDIDs(t *testing.T) {
	api := &stubAPI{
		dids: ownedDIDs("5551110001", "5551110002"),
		smsReplies: []*voipms.SMSResponse{{
			Status: voipms.StatusSuccess,
			SMS: []voipms.SMS{
				{ID: "1", DID: "5551110001", Contact: "5552220001"},
				{ID: "2", DID: "5559990009", Contact: "5552220001"}, // not owned
				{ID: "3", DID: "5551110002", Contact: "5552220002"},
			},
		}},
	}
	h := sms.NewHandler(api)

	res := doRequest(h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Equal(t, "no-store", res.Header().Get("Cache-Control"))

	msgs := listedSMS(t, res)
	require.Len(t, msgs, 2)
	assert.Equal(t, "1", msgs[0]["id"])
	assert.Equal(t, "3", msgs[1]["id"])
}

func TestListSMSLocalContactFilter(t *testing.T) {
	api := &stubAPI{
		dids: ownedDIDs("5551110001"),
		smsReplies: []*voipms.SMSResponse{{
			Status: voipms.StatusSuccess,
			SMS: []voipms.SMS{
				{ID: "1", DID: "5551110001", Contact: "5552220001"},
				{ID: "2", DID: "5551110001", Contact: "5552220002"},
			},
		}},
	}
	h := sms.NewHandler(api)

	res := doRequest(h, http.MethodGet, "/?contact=5552220002", "")
	require.Equal(t, http.StatusOK, res.Code)

	msgs := listedSMS(t, res)
	require.Len(t, msgs, 1)
	assert.Equal(t, "2", msgs[0]["id"])
}

func TestListSMSForbiddenDID(t *testing.T) {
	api := &stubAPI{dids: ownedDIDs("5551110001")}
	h := sms.NewHandler(api)

	res := doRequest(h, http.MethodGet, "/?did=5559990009", "")
	assert.Equal(t, http.StatusForbidden, res.Code)
	// Forbidden, never an empty list: upstream is not even queried.
	assert.Empty(t, api.getSMSCalls)
}

func TestListSMSNoOwnedDIDs(t *testing.T) {
	api := &stubAPI{dids: &voipms.DIDsResponse{Status: voipms.StatusNoData}}
	h := sms.NewHandler(api)

	res := doRequest(h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Empty(t, listedSMS(t, res))
	assert.Empty(t, api.getSMSCalls)
}

func TestListSMSDateRangeFallback(t *testing.T) {
	api := &stubAPI{
		dids: ownedDIDs("5551110001"),
		smsReplies: []*voipms.SMSResponse{
			{Status: voipms.StatusInvalidDateRange},
			{Status: voipms.StatusSuccess, SMS: []voipms.SMS{{ID: "1", DID: "5551110001"}}},
		},
	}
	h := sms.NewHandler(api)

	res := doRequest(h, http.MethodGet, "/?from=2019-01-01&to=2026-01-01", "")
	require.Equal(t, http.StatusOK, res.Code)
	require.Len(t, api.getSMSCalls, 2)

	// First call honors the caller's window, the retry discards it.
	assert.Equal(t, "2019-01-01", api.getSMSCalls[0].From)
	assert.NotEqual(t, api.getSMSCalls[0].From, api.getSMSCalls[1].From)
	assert.Len(t, listedSMS(t, res), 1)
}

func TestListSMSDateRangeFallbackRetriesOnce(t *testing.T) {
	api := &stubAPI{
		dids:       ownedDIDs("5551110001"),
		smsReplies: []*voipms.SMSResponse{{Status: voipms.StatusInvalidDateRange}},
	}
	h := sms.NewHandler(api)

	res := doRequest(h, http.MethodGet, "/?from=2019-01-01&to=2026-01-01", "")
	// Still invalid after the fallback: result is passed through, no loop.
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, api.getSMSCalls, 2)
}

func TestSendSMSForbiddenDID(t *testing.T) {
	api := &stubAPI{dids: ownedDIDs("5551110001")}
	h := sms.NewHandler(api)

	res := doRequest(h, http.MethodPost, "/", `{"did":"5559990009","dst":"5552220001","message":"hi"}`)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Zero(t, api.sendSMSCalls)
}

func TestSendSMSNoDIDs(t *testing.T) {
	api := &stubAPI{dids: &voipms.DIDsResponse{Status: voipms.StatusNoData}}
	h := sms.NewHandler(api)

	res := doRequest(h, http.MethodPost, "/", `{"did":"5551110001","dst":"5552220001","message":"hi"}`)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Zero(t, api.sendSMSCalls)
}

func TestSendSMSSuccess(t *testing.T) {
	api := &stubAPI{dids: ownedDIDs("5551110001")}
	h := sms.NewHandler(api)

	res := doRequest(h, http.MethodPost, "/", `{"did":"5551110001","dst":"5552220001","message":"hi"}`)
	assert.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Equal(t, 1, api.sendSMSCalls)
}

func TestSendMMSRejectsDataURL(t *testing.T) {
	api := &stubAPI{dids: ownedDIDs("5551110001")}
	h := sms.NewHandler(api)

	res := doRequest(h, http.MethodPost, "/mms",
		`{"did":"5551110001","dst":"5552220001","media1":"data:image/png;base64,AAAA"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "invalid_media1")
	assert.Zero(t, api.sendMMSCalls)
}

func TestSendMMSRejectsPrivateAddress(t *testing.T) {
	api := &stubAPI{dids: ownedDIDs("5551110001")}
	h := sms.NewHandler(api)

	res := doRequest(h, http.MethodPost, "/mms",
		`{"did":"5551110001","dst":"5552220001","media1":"http://127.0.0.1/x.png"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "media1_not_public")
	assert.Zero(t, api.sendMMSCalls)
}

func TestSendMMSBlankMediaDropped(t *testing.T) {
	api := &stubAPI{dids: ownedDIDs("5551110001")}
	h := sms.NewHandler(api)

	res := doRequest(h, http.MethodPost, "/mms",
		`{"did":"5551110001","dst":"5552220001","message":"hi","media1":"   "}`)
	assert.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.Equal(t, 1, api.sendMMSCalls)
	assert.Empty(t, api.sendMMSParam.Media1)
}

func TestSendMMSUpstreamErrorPreserved(t *testing.T) {
	api := &stubAPI{
		dids:       ownedDIDs("5551110001"),
		sendMMSErr: &voipms.HTTPError{StatusCode: 500, Body: []byte(`{"status":"error"}`)},
	}
	h := sms.NewHandler(api)

	res := doRequest(h, http.MethodPost, "/mms",
		`{"did":"5551110001","dst":"5552220001","message":"hi","media1":"http://example.com/a.png"}`)
	assert.Equal(t, http.StatusBadGateway, res.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, "voipms_error", body["code"])
	assert.Equal(t, map[string]any{"status": "error"}, body["voipms"])
	assert.Equal(t, float64(500), body["voipms_http_status"])
}

func TestListMMSFiltersToOwnedDIDs(t *testing.T) {
	api := &stubAPI{
		dids: ownedDIDs("5551110001"),
		mms: &voipms.MMSResponse{
			Status: voipms.StatusSuccess,
			MMS: []voipms.MMS{
				{ID: "1", DID: "5551110001"},
				{ID: "2", DID: "5559990009"},
			},
		},
	}
	h := sms.NewHandler(api)

	res := doRequest(h, http.MethodGet, "/mms", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, 1, api.getMMSCalls)

	var body struct {
		Data struct {
			MMS []map[string]any `json:"mms"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Len(t, body.Data.MMS, 1)
	assert.Equal(t, "1", body.Data.MMS[0]["id"])
}

func TestDeleteSMSNotInWindow(t *testing.T) {
	api := &stubAPI{
		dids: ownedDIDs("5551110001"),
		smsReplies: []*voipms.SMSResponse{{
			Status: voipms.StatusSuccess,
			SMS:    []voipms.SMS{{ID: "1", DID: "5551110001"}},
		}},
	}
	h := sms.NewHandler(api)

	res := doRequest(h, http.MethodDelete, "/42", "")
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Zero(t, api.deleteCalls)
}

func TestDeleteSMSUnownedMessage(t *testing.T) {
	api := &stubAPI{
		dids: ownedDIDs("5551110001"),
		smsReplies: []*voipms.SMSResponse{{
			Status: voipms.StatusSuccess,
			SMS:    []voipms.SMS{{ID: "42", DID: "5559990009"}},
		}},
	}
	h := sms.NewHandler(api)

	res := doRequest(h, http.MethodDelete, "/42", "")
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Zero(t, api.deleteCalls)
}

func TestDeleteSMSSuccess(t *testing.T) {
	api := &stubAPI{
		dids: ownedDIDs("5551110001"),
		smsReplies: []*voipms.SMSResponse{{
			Status: voipms.StatusSuccess,
			SMS:    []voipms.SMS{{ID: "42", DID: "5551110001"}},
		}},
	}
	h := sms.NewHandler(api)

	res := doRequest(h, http.MethodDelete, "/42", "")
	assert.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Equal(t, 1, api.deleteCalls)
}
