// Package httputil provides HTTP utilities for standardized request/response
// handling.
//
// # Response Helpers
//
// JSON responses:
//
//	httputil.WriteSuccess(w, data)
//	httputil.WriteCreated(w, resource)
//
// Error responses carry a machine-readable code alongside the message:
//
//	httputil.WriteDomainError(w, err) // translates authz/identity error kinds
//	httputil.WriteRequestError(w, "invalid filter type")
//	httputil.WriteNotFound(w, "character not found")
//
// # Request Parsing
//
//	var req createRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // error response already written
//	}
//	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
//
// # Related Packages
//
//   - pkg/middleware: authentication and request-logging middleware
//   - pkg/authz: the error kinds translated by WriteDomainError
package httputil
