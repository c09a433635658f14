// Package tags implements the tag registry: the Tag record, its postgres
// store, the resource policy gating tag operations, and the HTTP handlers.
// Tags annotate characters and are compatible only with characters sharing
// their venue and type.
package tags
