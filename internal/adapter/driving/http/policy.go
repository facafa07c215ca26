package httphandler

import (
	"crypto/subtle"
	"net/http"
	"slices"

	"github.com/pquerna/otp/totp"
)

// Capability is something a request must prove before a route runs.
type Capability string

const (
	// CapOrgAdmin requires a valid X-Api-Token header.
	CapOrgAdmin Capability = "org_admin"
	// CapMFAVerified requires a valid TOTP code in the X-MFA-Code header.
	CapMFAVerified Capability = "mfa_verified"
)

// Request headers carrying credentials.
const (
	HeaderAPIToken = "X-Api-Token"
	HeaderMFACode  = "X-MFA-Code"
)

// Route names are the keys of the capability policy.
const (
	RouteListAssetUsers   = "asset_users.list"
	RouteCreateAssetUser  = "asset_users.create"
	RouteAuthInfo         = "asset_users.auth_info"
	RouteExport           = "asset_users.export"
	RouteTestConnectivity = "asset_users.test_connectivity"
	RoutePollTask         = "tasks.poll"
	RouteHealth           = "health"
	RouteMetrics          = "metrics"
)

// Policy maps route names to the capabilities they require. It is built
// once and never modified afterwards.
type Policy struct {
	routes map[string][]Capability
}

// NewPolicy builds the route table. With needMFA, routes that reveal
// secrets also require CapMFAVerified.
func NewPolicy(needMFA bool) Policy {
	admin := []Capability{CapOrgAdmin}
	secrets := []Capability{CapOrgAdmin}
	if needMFA {
		secrets = append(secrets, CapMFAVerified)
	}

	return Policy{routes: map[string][]Capability{
		RouteListAssetUsers:   admin,
		RouteCreateAssetUser:  admin,
		RouteAuthInfo:         secrets,
		RouteExport:           secrets,
		RouteTestConnectivity: admin,
		RoutePollTask:         admin,
		RouteHealth:           nil,
		RouteMetrics:          nil,
	}}
}

// Required returns the capabilities of route. Unknown routes require
// CapOrgAdmin.
func (p Policy) Required(route string) []Capability {
	caps, ok := p.routes[route]
	if !ok {
		return []Capability{CapOrgAdmin}
	}
	return slices.Clone(caps)
}

// denial describes why a request lacks a capability.
type denial struct {
	status  int
	message string
}

// authenticator checks capabilities against static credentials.
type authenticator struct {
	apiToken  []byte
	mfaSecret string
}

func (a authenticator) check(r *http.Request, c Capability) *denial {
	switch c {
	case CapOrgAdmin:
		token := r.Header.Get(HeaderAPIToken)
		if token == "" {
			return &denial{http.StatusUnauthorized, "missing api token"}
		}
		if len(a.apiToken) == 0 || subtle.ConstantTimeCompare([]byte(token), a.apiToken) != 1 {
			return &denial{http.StatusForbidden, "invalid api token"}
		}
	case CapMFAVerified:
		code := r.Header.Get(HeaderMFACode)
		if code == "" {
			return &denial{http.StatusForbidden, "mfa code required"}
		}
		if a.mfaSecret == "" || !totp.Validate(code, a.mfaSecret) {
			return &denial{http.StatusForbidden, "invalid mfa code"}
		}
	default:
		return &denial{http.StatusForbidden, "unsupported capability"}
	}
	return nil
}
