// Package characters implements the character registry: the Character
// record, its postgres store, the resource policy that encodes every
// authorization and validation rule for character operations, and the HTTP
// handlers.
//
// The policy is the main consumer of the decision engine in pkg/authz: it
// selects permissions by record type (PC vs NPC), normalizes them against the
// request venue, evaluates the caller's offices, resolves the allowed
// org-unit scope through pkg/orgtree, and either rewrites list queries or
// checks fetched records against that scope.
package characters
