package validation

import (
	"net"
	"net/url"
	"strings"

	apperrors "go-jp-digitizer/internal/errors"
)

// AzureBlobHostSuffix identifies Azure Blob Storage endpoints
const AzureBlobHostSuffix = ".blob.core.windows.net"

// URLValidator checks remote image locations before anything is downloaded.
// Internal addresses are refused unless AllowPrivateNetworks is set.
type URLValidator struct {
	allowedSchemes []string
	allowedHosts   []string
	allowPrivate   bool
}

// NewURLValidator allows http and https on any public host
func NewURLValidator() *URLValidator {
	return &URLValidator{
		allowedSchemes: []string{"http", "https"},
	}
}

// NewURLValidatorWithOptions restricts schemes and hosts. A host entry that
// starts with "." matches every subdomain.
func NewURLValidatorWithOptions(schemes []string, hosts []string) *URLValidator {
	return &URLValidator{
		allowedSchemes: schemes,
		allowedHosts:   hosts,
	}
}

// AllowPrivateNetworks lifts the internal address deny-list, for deployments
// that read scans from an intranet host
func (v *URLValidator) AllowPrivateNetworks() *URLValidator {
	v.allowPrivate = true
	return v
}

// ValidateImageURL returns an InvalidInput error describing the first problem found
func (v *URLValidator) ValidateImageURL(imageURL string) error {
	if strings.TrimSpace(imageURL) == "" {
		return apperrors.NewInvalidInputError("image URL cannot be empty", nil)
	}

	parsed, err := url.Parse(strings.TrimSpace(imageURL))
	if err != nil {
		return apperrors.NewInvalidInputError("invalid image URL format", err)
	}
	if !v.isSchemeAllowed(parsed.Scheme) {
		return apperrors.NewInvalidInputError("image URL scheme not allowed", nil)
	}
	if parsed.Hostname() == "" {
		return apperrors.NewInvalidInputError("image URL must have a valid host", nil)
	}
	if !v.allowPrivate && isInternalHost(parsed.Hostname()) {
		return apperrors.NewInvalidInputError("image URL host not allowed", nil)
	}
	if !v.isHostAllowed(parsed.Hostname()) {
		return apperrors.NewInvalidInputError("image URL host not allowed", nil)
	}
	return nil
}

// IsPublicIP reports whether ip is routable on the public internet. Cloud
// metadata endpoints such as 169.254.169.254 are link-local and fail this check.
func IsPublicIP(ip net.IP) bool {
	return !(ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified())
}

// isInternalHost only inspects literals and localhost names; hostnames that
// resolve to internal addresses are caught when the fetcher dials
func isInternalHost(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return !IsPublicIP(ip)
	}
	return false
}

func (v *URLValidator) isSchemeAllowed(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

// Empty allowedHosts means no restriction
func (v *URLValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, allowed := range v.allowedHosts {
		allowed = strings.ToLower(allowed)
		if strings.HasPrefix(allowed, ".") {
			if strings.HasSuffix(host, allowed) {
				return true
			}
			continue
		}
		if host == allowed {
			return true
		}
	}
	return false
}
