// Package identity is the client for the external identity service ("the
// hub"): it resolves bearer tokens into a user id plus office assignments and
// fetches the organizational-unit tree. Failures here are authentication
// failures, a distinct kind from the authorization errors in package authz.
package identity
