// Package voipms is the HTTP client for the VoIP.ms REST API. The whole API
// is a single GET endpoint selecting the operation with a `method` query
// parameter; responses are JSON with a `status` discriminator.
package voipms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

type Client struct {
	apiURL   string
	username string
	password string
	client   *http.Client
}

func NewClient(apiURL, username, password string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiURL:   apiURL,
		username: username,
		password: password,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// HTTPError is a non-200 upstream reply. The body is preserved verbatim so
// handlers can surface it to clients for debugging.
type HTTPError struct {
	StatusCode int
	Body       json.RawMessage
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("voipms: http %d", e.StatusCode)
}

func (c *Client) call(ctx context.Context, method string, params map[string]string, out any) error {
	q := url.Values{}
	q.Set("api_username", c.username)
	q.Set("api_password", c.password)
	q.Set("method", method)
	for k, v := range params {
		if v != "" {
			q.Set(k, v)
		}
	}

	// Method only; the query string carries API credentials.
	log.Printf("voipms: %s", method)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// url.Error carries the full request URL, credentials included.
		// Report only the method and the underlying cause.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("voipms %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return &HTTPError{StatusCode: resp.StatusCode, Body: body}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("voipms %s: decode: %w", method, err)
	}
	return nil
}

// CallRaw decodes the reply into a generic map, for endpoints whose payload
// is passed through to the caller untouched.
func (c *Client) CallRaw(ctx context.Context, method string, params map[string]string) (map[string]any, error) {
	var out map[string]any
	if err := c.call(ctx, method, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetClients(ctx context.Context) (*ClientsResponse, error) {
	var out ClientsResponse
	if err := c.call(ctx, "getClients", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetDIDsInfo(ctx context.Context, clientID string) (*DIDsResponse, error) {
	var out DIDsResponse
	if err := c.call(ctx, "getDIDsInfo", map[string]string{"client": clientID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func listParams(p SMSListParams) map[string]string {
	params := map[string]string{
		"client":   p.Client,
		"timezone": p.Timezone,
		"from":     p.From,
		"to":       p.To,
	}
	if p.Limit > 0 {
		params["limit"] = strconv.Itoa(p.Limit)
	}
	for k, v := range p.Extra {
		params[k] = v
	}
	return params
}

func (c *Client) GetSMS(ctx context.Context, p SMSListParams) (*SMSResponse, error) {
	var out SMSResponse
	if err := c.call(ctx, "getSMS", listParams(p), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetMMS(ctx context.Context, p SMSListParams) (*MMSResponse, error) {
	var out MMSResponse
	if err := c.call(ctx, "getMMS", listParams(p), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SendSMS(ctx context.Context, p SendSMSParams) (*SendResponse, error) {
	var out SendResponse
	params := map[string]string{"did": p.DID, "dst": p.Dst, "message": p.Message}
	if err := c.call(ctx, "sendSMS", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SendMMS(ctx context.Context, p SendMMSParams) (*SendResponse, error) {
	var out SendResponse
	params := map[string]string{"did": p.DID, "dst": p.Dst, "message": p.Message}
	if p.Media1 != "" {
		params["media1"] = p.Media1
	}
	if err := c.call(ctx, "sendMMS", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteSMS(ctx context.Context, id string) (*BasicResponse, error) {
	var out BasicResponse
	if err := c.call(ctx, "deleteSMS", map[string]string{"id": id}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetVoicemails(ctx context.Context, clientID string, extra map[string]string) (map[string]any, error) {
	return c.CallRaw(ctx, "getVoicemails", withClient(clientID, extra))
}

func (c *Client) GetVoicemailFolders(ctx context.Context, clientID string, extra map[string]string) (map[string]any, error) {
	return c.CallRaw(ctx, "getVoicemailFolders", withClient(clientID, extra))
}

func (c *Client) GetVoicemailMessages(ctx context.Context, clientID string, extra map[string]string) (map[string]any, error) {
	return c.CallRaw(ctx, "getVoicemailMessages", withClient(clientID, extra))
}

func (c *Client) GetVoicemailMessageFile(ctx context.Context, clientID, messageNum string, extra map[string]string) (*VoicemailFileResponse, error) {
	params := withClient(clientID, extra)
	params["message_num"] = messageNum

	var out VoicemailFileResponse
	if err := c.call(ctx, "getVoicemailMessageFile", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DelVoicemailMessages(ctx context.Context, clientID, messageNum string, extra map[string]string) (map[string]any, error) {
	params := withClient(clientID, extra)
	params["message_num"] = messageNum
	return c.CallRaw(ctx, "delMessages", params)
}

func withClient(clientID string, extra map[string]string) map[string]string {
	params := map[string]string{"client": clientID}
	for k, v := range extra {
		params[k] = v
	}
	return params
}
