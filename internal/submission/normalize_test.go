package submission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/subvote/internal/model"
)

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Example.ORG", "example.org"},
		{"example.org.", "example.org"},
		{"  blog.example.org ", "blog.example.org"},
		{"bücher.example.org", "xn--bcher-kva.example.org"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeDomain(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := NormalizeDomain("")
	assert.Error(t, err)
}

func TestFullName(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{name: "@", want: "example.org"},
		{name: "", want: "example.org"},
		{name: "Blog", want: "blog.example.org"},
		{name: "api.v2", want: "api.v2.example.org"},
		{name: "café", want: "xn--caf-dma.example.org"},
		{name: ".blog", wantErr: true},
		{name: "blog.", wantErr: true},
		{name: "a..b", wantErr: true},
		{name: "no spaces", wantErr: true},
		{name: "under_score", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FullName(tt.name, "example.org")
			if tt.wantErr {
				var ve *ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, "name", ve.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeRecord(t *testing.T) {
	tests := []struct {
		desc      string
		typ       string
		value     string
		name      string
		wantType  model.RecordType
		wantValue string
		wantField string
	}{
		{desc: "ipv4", typ: "A", value: " 203.0.113.7 ", name: "blog.example.org", wantType: model.RecordA, wantValue: "203.0.113.7"},
		{desc: "lower-case type", typ: "a", value: "203.0.113.7", name: "example.org", wantType: model.RecordA, wantValue: "203.0.113.7"},
		{desc: "ipv6 rejected", typ: "A", value: "2001:db8::1", name: "blog.example.org", wantField: "value"},
		{desc: "mapped ipv6 rejected", typ: "A", value: "::ffff:203.0.113.7", name: "blog.example.org", wantField: "value"},
		{desc: "host as A rejected", typ: "A", value: "host.example.net", name: "blog.example.org", wantField: "value"},
		{desc: "cname", typ: "CNAME", value: "Pages.Example.NET.", name: "blog.example.org", wantType: model.RecordCNAME, wantValue: "pages.example.net"},
		{desc: "cname to address", typ: "CNAME", value: "203.0.113.7", name: "blog.example.org", wantField: "value"},
		{desc: "cname single label", typ: "CNAME", value: "localhost", name: "blog.example.org", wantField: "value"},
		{desc: "cname at apex", typ: "CNAME", value: "pages.example.net", name: "example.org", wantField: "type"},
		{desc: "cname loop", typ: "CNAME", value: "blog.example.org", name: "blog.example.org", wantField: "value"},
		{desc: "mx", typ: "MX", value: "mail.example.org", name: "blog.example.org", wantField: "type"},
		{desc: "empty value", typ: "A", value: "  ", name: "blog.example.org", wantField: "value"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			rt, value, err := normalizeRecord(tt.typ, tt.value, tt.name, "example.org")
			if tt.wantField != "" {
				var ve *ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, tt.wantField, ve.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, rt)
			assert.Equal(t, tt.wantValue, value)
		})
	}
}
