package dnsprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultCloudflareBaseURL is the Cloudflare v4 API root.
const DefaultCloudflareBaseURL = "https://api.cloudflare.com/client/v4"

// Cloudflare manages records in one Cloudflare zone.
type Cloudflare struct {
	zoneID     string
	apiToken   string
	baseURL    *url.URL
	HTTPClient *http.Client
}

type cloudflareRecordRequest struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied bool   `json:"proxied"`
}

type cloudflareMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type cloudflareResponse struct {
	Success bool                `json:"success"`
	Errors  []cloudflareMessage `json:"errors"`
	Result  struct {
		ID string `json:"id"`
	} `json:"result"`
}

// NewCloudflare creates a Cloudflare client for zoneID.
// An empty baseURL selects DefaultCloudflareBaseURL.
func NewCloudflare(zoneID, apiToken, baseURL string) (*Cloudflare, error) {
	if zoneID == "" {
		return nil, errors.New("cloudflare: missing zone id")
	}
	if apiToken == "" {
		return nil, errors.New("cloudflare: missing API token")
	}
	if baseURL == "" {
		baseURL = DefaultCloudflareBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("cloudflare: parse base url: %w", err)
	}

	return &Cloudflare{
		zoneID:     zoneID,
		apiToken:   apiToken,
		baseURL:    u,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// CreateRecord implements Provider.
func (c *Cloudflare) CreateRecord(ctx context.Context, r Record) (string, error) {
	endpoint := c.baseURL.JoinPath("zones", c.zoneID, "dns_records")

	var resp cloudflareResponse
	if err := c.do(ctx, "create", http.MethodPost, endpoint, toCloudflare(r), &resp); err != nil {
		return "", err
	}
	if resp.Result.ID == "" {
		return "", &ProviderError{Provider: "cloudflare", Op: "create", Status: http.StatusOK, Payload: "response carried no record id"}
	}
	return resp.Result.ID, nil
}

// UpdateRecord implements Provider.
func (c *Cloudflare) UpdateRecord(ctx context.Context, id string, r Record) error {
	endpoint := c.baseURL.JoinPath("zones", c.zoneID, "dns_records", id)
	return c.do(ctx, "update", http.MethodPut, endpoint, toCloudflare(r), nil)
}

// DeleteRecord implements Provider.
func (c *Cloudflare) DeleteRecord(ctx context.Context, id string) error {
	endpoint := c.baseURL.JoinPath("zones", c.zoneID, "dns_records", id)
	return c.do(ctx, "delete", http.MethodDelete, endpoint, nil, nil)
}

func toCloudflare(r Record) cloudflareRecordRequest {
	return cloudflareRecordRequest{
		Type:    string(r.Type),
		Name:    r.Name,
		Content: r.Value,
		TTL:     r.TTL,
		Proxied: false,
	}
}

func (c *Cloudflare) do(ctx context.Context, op, method string, endpoint *url.URL, payload any, result *cloudflareResponse) error {
	req, err := c.newJSONRequest(ctx, method, endpoint, payload)
	if err != nil {
		return err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &ProviderError{Provider: "cloudflare", Op: op, Payload: err.Error(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ProviderError{Provider: "cloudflare", Op: op, Status: resp.StatusCode, Payload: "read response: " + err.Error(), Err: err}
	}

	var envelope cloudflareResponse
	decodeErr := json.Unmarshal(raw, &envelope)

	if resp.StatusCode/100 != 2 || (decodeErr == nil && !envelope.Success && len(envelope.Errors) > 0) {
		return &ProviderError{Provider: "cloudflare", Op: op, Status: resp.StatusCode, Payload: cloudflarePayload(envelope, raw)}
	}

	if result == nil {
		return nil
	}
	if decodeErr != nil {
		return &ProviderError{Provider: "cloudflare", Op: op, Status: resp.StatusCode, Payload: "decode response: " + decodeErr.Error(), Err: decodeErr}
	}
	*result = envelope
	return nil
}

func cloudflarePayload(envelope cloudflareResponse, raw []byte) string {
	if len(envelope.Errors) == 0 {
		return strings.TrimSpace(string(raw))
	}
	msgs := make([]string, len(envelope.Errors))
	for i, e := range envelope.Errors {
		msgs[i] = fmt.Sprintf("%d: %s", e.Code, e.Message)
	}
	return strings.Join(msgs, "; ")
}

func (c *Cloudflare) newJSONRequest(ctx context.Context, method string, endpoint *url.URL, payload any) (*http.Request, error) {
	buf := new(bytes.Buffer)

	if payload != nil {
		if err := json.NewEncoder(buf).Encode(payload); err != nil {
			return nil, fmt.Errorf("failed to create request JSON body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), buf)
	if err != nil {
		return nil, fmt.Errorf("unable to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}
