package testutil

import (
	"net/http"

	"heritage/pkg/requestcontext"
)

// WithPrincipal attaches an authenticated principal to the request context.
// This simulates what the auth middleware does for a valid bearer token.
func WithPrincipal(req *http.Request, p requestcontext.Principal) *http.Request {
	return req.WithContext(requestcontext.WithPrincipal(req.Context(), p))
}

// WithMember authenticates the request as the owner of the member profile slug.
func WithMember(req *http.Request, userID, slug string) *http.Request {
	return WithPrincipal(req, requestcontext.Principal{ID: userID, Slug: slug})
}

// WithAdmin authenticates the request as an administrator.
func WithAdmin(req *http.Request, userID string) *http.Request {
	return WithPrincipal(req, requestcontext.Principal{ID: userID, Roles: []string{requestcontext.RoleAdmin}})
}
