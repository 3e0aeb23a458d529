package voipms

import "encoding/json"

// Upstream status values. Anything else is an upstream-reported error code.
const (
	StatusSuccess          = "success"
	StatusNoData           = "no_data"
	StatusInvalidDateRange = "invalid_daterange"
)

type ClientRecord struct {
	Client  string `json:"client"`
	Email   string `json:"email"`
	Company string `json:"company"`
}

type ClientsResponse struct {
	Status  string         `json:"status"`
	Clients []ClientRecord `json:"clients"`
}

type DID struct {
	DID         string `json:"did"`
	Description string `json:"description"`
	Routing     string `json:"routing,omitempty"`
	SMSEnabled  string `json:"sms_enabled,omitempty"`
}

type DIDsResponse struct {
	Status string `json:"status"`
	DIDs   []DID  `json:"dids"`
}

type SMS struct {
	ID      string `json:"id"`
	Date    string `json:"date"`
	Type    string `json:"type"`
	DID     string `json:"did"`
	Contact string `json:"contact"`
	Message string `json:"message"`
}

type SMSResponse struct {
	Status string `json:"status"`
	SMS    []SMS  `json:"sms"`
}

type MMS struct {
	ID      string          `json:"id"`
	Date    string          `json:"date"`
	Type    string          `json:"type"`
	DID     string          `json:"did"`
	Contact string          `json:"contact"`
	Message string          `json:"message"`
	Media   json.RawMessage `json:"media,omitempty"`
}

type MMSResponse struct {
	Status string `json:"status"`
	MMS    []MMS  `json:"mms"`
}

type SendResponse struct {
	Status string          `json:"status"`
	SMS    json.RawMessage `json:"sms,omitempty"`
	MMS    json.RawMessage `json:"mms,omitempty"`
}

type BasicResponse struct {
	Status string `json:"status"`
}

type VoicemailFileResponse struct {
	Status  string `json:"status"`
	Message struct {
		Data string `json:"data"`
	} `json:"message"`
}

type SMSListParams struct {
	Client   string
	Limit    int
	From     string // empty means no window param is sent
	To       string
	Timezone string
	Extra    map[string]string
}

type SendSMSParams struct {
	DID     string
	Dst     string
	Message string
}

type SendMMSParams struct {
	DID     string
	Dst     string
	Message string
	Media1  string // empty means no media attached
}
