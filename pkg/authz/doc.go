// Package authz implements the authorization decision engine: venue-aware
// permission normalization, office evaluation against the org-unit hierarchy,
// and query scope filtering. It is pure CPU work with no I/O; the org tree it
// consumes is loaded and cached by package orgtree.
package authz
