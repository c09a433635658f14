// Package query defines the structured predicate vocabulary shared by the
// authorization scope filter and the storage layer. Predicates form a tree of
// and/or/equality/in-list nodes; the same vocabulary is accepted on the wire
// as a "where" JSON object and rendered to SQL by the stores.
package query
