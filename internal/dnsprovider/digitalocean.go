package dnsprovider

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/digitalocean/godo"
	"golang.org/x/oauth2"
)

// DigitalOcean manages records in one DigitalOcean-hosted domain.
type DigitalOcean struct {
	client *godo.Client
	domain string
}

// NewDigitalOcean creates a DigitalOcean client for domain authenticated by token.
// opts are passed to godo, e.g. godo.SetBaseURL in tests.
func NewDigitalOcean(token, domain string, opts ...godo.ClientOpt) (*DigitalOcean, error) {
	if token == "" {
		return nil, errors.New("digitalocean: missing API token")
	}
	if domain == "" {
		return nil, errors.New("digitalocean: missing domain")
	}

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	oauthClient := oauth2.NewClient(context.Background(), tokenSource)
	client, err := godo.New(oauthClient, opts...)
	if err != nil {
		return nil, fmt.Errorf("digitalocean: %w", err)
	}

	return &DigitalOcean{client: client, domain: strings.ToLower(domain)}, nil
}

// CreateRecord implements Provider. The returned id is the decimal record id.
func (d *DigitalOcean) CreateRecord(ctx context.Context, r Record) (string, error) {
	rec, resp, err := d.client.Domains.CreateRecord(ctx, d.domain, d.editRequest(r))
	if err != nil {
		return "", doError("create", resp, err)
	}
	return strconv.Itoa(rec.ID), nil
}

// UpdateRecord implements Provider.
func (d *DigitalOcean) UpdateRecord(ctx context.Context, id string, r Record) error {
	recordID, err := parseDOID("update", id)
	if err != nil {
		return err
	}
	_, resp, err := d.client.Domains.EditRecord(ctx, d.domain, recordID, d.editRequest(r))
	if err != nil {
		return doError("update", resp, err)
	}
	return nil
}

// DeleteRecord implements Provider.
func (d *DigitalOcean) DeleteRecord(ctx context.Context, id string) error {
	recordID, err := parseDOID("delete", id)
	if err != nil {
		return err
	}
	resp, err := d.client.Domains.DeleteRecord(ctx, d.domain, recordID)
	if err != nil {
		return doError("delete", resp, err)
	}
	return nil
}

func (d *DigitalOcean) editRequest(r Record) *godo.DomainRecordEditRequest {
	data := r.Value
	// DigitalOcean requires CNAME targets to be fully qualified.
	if r.Type == "CNAME" && !strings.HasSuffix(data, ".") {
		data += "."
	}
	return &godo.DomainRecordEditRequest{
		Type: string(r.Type),
		Name: d.relativeName(r.Name),
		Data: data,
		TTL:  r.TTL,
	}
}

// relativeName strips the managed domain: blog.example.org -> blog, example.org -> @.
func (d *DigitalOcean) relativeName(name string) string {
	name = strings.TrimSuffix(strings.ToLower(name), ".")
	if name == d.domain {
		return "@"
	}
	return strings.TrimSuffix(name, "."+d.domain)
}

func parseDOID(op, id string) (int, error) {
	n, err := strconv.Atoi(id)
	if err != nil {
		return 0, &ProviderError{Provider: "digitalocean", Op: op, Payload: fmt.Sprintf("invalid record id %q", id), Err: err}
	}
	return n, nil
}

func doError(op string, resp *godo.Response, err error) error {
	pe := &ProviderError{Provider: "digitalocean", Op: op, Payload: err.Error(), Err: err}
	if resp != nil && resp.Response != nil {
		pe.Status = resp.StatusCode
	}
	var er *godo.ErrorResponse
	if errors.As(err, &er) && er.Message != "" {
		pe.Payload = er.Message
	}
	return pe
}
