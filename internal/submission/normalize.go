package submission

import (
	"fmt"
	"net/netip"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/subvote/internal/model"
)

// ValidationError reports a field of a request that cannot be accepted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NormalizeDomain converts a domain to its lower-case ASCII form.
// Unicode labels are NFC-normalized and punycoded; a trailing dot is dropped.
func NormalizeDomain(domain string) (string, error) {
	d := strings.TrimSuffix(strings.TrimSpace(domain), ".")
	if d == "" {
		return "", fmt.Errorf("empty domain")
	}
	ascii, err := idna.Lookup.ToASCII(norm.NFC.String(d))
	if err != nil {
		return "", fmt.Errorf("domain %q: %w", domain, err)
	}
	return strings.ToLower(ascii), nil
}

// FullName expands a requested name under parent. "@" and "" address the
// parent itself; anything else becomes name.parent.
func FullName(name, parent string) (string, error) {
	label := strings.TrimSpace(name)
	if label == "@" || label == "" {
		return parent, nil
	}
	if strings.HasPrefix(label, ".") || strings.HasSuffix(label, ".") || strings.Contains(label, "..") {
		return "", invalid("name", "%q is not a valid subdomain label", name)
	}
	full, err := NormalizeDomain(label + "." + parent)
	if err != nil {
		return "", invalid("name", "%q is not a valid subdomain: %v", name, err)
	}
	return full, nil
}

// normalizeRecord validates a record type and value and returns them in
// stored form. A values must be IPv4 addresses; CNAME values must be host
// names and may not sit at the parent apex.
func normalizeRecord(typ, value, fullName, parent string) (model.RecordType, string, error) {
	rt, err := model.ParseRecordType(typ)
	if err != nil {
		return "", "", invalid("type", "%v", err)
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return "", "", invalid("value", "must not be empty")
	}

	switch rt {
	case model.RecordA:
		addr, err := netip.ParseAddr(value)
		if err != nil || !addr.Is4() {
			return "", "", invalid("value", "%q is not an IPv4 address", value)
		}
		return rt, addr.String(), nil

	case model.RecordCNAME:
		if fullName == parent {
			return "", "", invalid("type", "CNAME is not allowed at the zone apex")
		}
		if _, err := netip.ParseAddr(value); err == nil {
			return "", "", invalid("value", "CNAME target must be a host name, not an address")
		}
		host, err := NormalizeDomain(value)
		if err != nil || !strings.Contains(host, ".") {
			return "", "", invalid("value", "%q is not a valid host name", value)
		}
		if host == fullName {
			return "", "", invalid("value", "CNAME cannot point at itself")
		}
		return rt, host, nil
	}
	return "", "", invalid("type", "unsupported record type %q", typ)
}
