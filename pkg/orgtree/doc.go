// Package orgtree holds the cached organizational-unit hierarchy fetched from
// the identity service. The tree is immutable once built; the cache replaces
// it atomically on TTL expiry and de-duplicates concurrent refreshes.
package orgtree
