package authz

import "strings"

const (
	// AdminPermission is the universal override token: holding it in any
	// office satisfies every permission check for that office's unit.
	AdminPermission = "admin"

	// WildcardPermission marks an operation as open to any authenticated
	// caller. It bypasses normalization entirely and is checked by policies
	// before the evaluator runs.
	WildcardPermission = "*"
)

// Permission is a role token split into its abstract base and optional venue
// qualifier. Role storage and the identity service use the concatenated
// "base_venue" string form; internally everything operates on the pair and
// only serializes back at the boundary.
type Permission struct {
	Base  string
	Venue string
}

// String serializes the permission to its wire form.
func (p Permission) String() string {
	if p.Venue == "" {
		return p.Base
	}
	return p.Base + "_" + p.Venue
}

// Mode selects how venue qualification is applied during normalization.
type Mode int

const (
	// Strict qualifies permissions only with the venue known from request
	// context. A venue-gated check without a venue in context must fail
	// rather than silently match every venue.
	Strict Mode = iota

	// Loose qualifies permissions with every known venue. Used only for the
	// coarse allow/deny gate that runs before the fine-grained per-record
	// check; the later Strict check is the actual decision.
	Loose
)

// Normalizer expands abstract permission names into the concrete, venue
// qualified tokens that satisfy them.
type Normalizer struct {
	venues []string
}

// NewNormalizer builds a normalizer over the fixed venue enumeration.
func NewNormalizer(venues []string) *Normalizer {
	return &Normalizer{venues: append([]string(nil), venues...)}
}

// Venues returns the venue enumeration the normalizer was built with.
func (n *Normalizer) Venues() []string {
	return append([]string(nil), n.venues...)
}

// KnownVenue reports whether id is part of the venue enumeration.
func (n *Normalizer) KnownVenue(id string) bool {
	for _, v := range n.venues {
		if v == id {
			return true
		}
	}
	return false
}

// Normalize expands base permissions into the full satisfying token set:
// the bases themselves, their venue-qualified variants per mode, and the
// universal admin override. The result is a pure function of its inputs.
func (n *Normalizer) Normalize(bases []string, venue string, mode Mode) []string {
	perms := make([]Permission, 0, len(bases)*(len(n.venues)+1))
	for _, base := range bases {
		perms = append(perms, Permission{Base: base})
	}
	switch mode {
	case Loose:
		for _, base := range bases {
			for _, v := range n.venues {
				perms = append(perms, Permission{Base: base, Venue: v})
			}
		}
	default:
		if venue != "" {
			for _, base := range bases {
				perms = append(perms, Permission{Base: base, Venue: venue})
			}
		}
	}

	out := make([]string, 0, len(perms)+1)
	for _, p := range perms {
		out = append(out, p.String())
	}
	return append(out, AdminPermission)
}

// Parse splits a wire-form role token back into its base and venue. The
// concatenated form is only unambiguous against the known venue list, so an
// unrecognized suffix leaves the whole token as the base.
func (n *Normalizer) Parse(token string) Permission {
	for _, v := range n.venues {
		if strings.HasSuffix(token, "_"+v) {
			return Permission{Base: strings.TrimSuffix(token, "_"+v), Venue: v}
		}
	}
	return Permission{Base: token}
}
