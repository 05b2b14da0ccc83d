package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aretw0/waypoint/pkg/admin"
)

const (
	// HeaderTenant scopes a request to one tenant.
	HeaderTenant = "X-Tenant-ID"
	// HeaderActor names the user or system issuing the request.
	HeaderActor = "X-Actor"
)

// ErrForbidden is returned by an Authorizer to deny a request.
var ErrForbidden = errors.New("forbidden")

// Authorizer decides whether caller may perform action (e.g. "config.update",
// "object.transition"). Returning an error wrapping ErrForbidden yields a 403.
type Authorizer interface {
	Authorize(r *http.Request, caller admin.Caller, action string) error
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(r *http.Request, caller admin.Caller, action string) error

func (f AuthorizerFunc) Authorize(r *http.Request, caller admin.Caller, action string) error {
	return f(r, caller, action)
}

// AllowAll authorizes every request.
var AllowAll = AuthorizerFunc(func(*http.Request, admin.Caller, string) error { return nil })

func callerFrom(r *http.Request) admin.Caller {
	return admin.Caller{
		TenantID: strings.TrimSpace(r.Header.Get(HeaderTenant)),
		Actor:    strings.TrimSpace(r.Header.Get(HeaderActor)),
	}
}
