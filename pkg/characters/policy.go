package characters

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/larpkeep/characterhub/pkg/authz"
	"github.com/larpkeep/characterhub/pkg/observability"
	"github.com/larpkeep/characterhub/pkg/orgtree"
	"github.com/larpkeep/characterhub/pkg/query"
	"github.com/larpkeep/characterhub/pkg/tags"
)

// Permission bases gating character operations. Edit implies view: holding an
// edit-class role is enough to see the records it lets you change.
const (
	PermView    = "character_view"
	PermEdit    = "character_edit"
	PermNPCView = "npc_view"
	PermNPCEdit = "npc_edit"
)

const resourceName = "character"

// Policy encodes the character-specific authorization rules. Characters live
// in the org-unit tree, so most checks resolve the caller's satisfying units
// into a descendant scope and then either rewrite the query or test the
// fetched record against it.
type Policy struct {
	normalizer *authz.Normalizer
	tree       *orgtree.Cache
	metrics    *observability.Metrics
	log        logrus.FieldLogger
}

// NewPolicy builds the character policy.
func NewPolicy(normalizer *authz.Normalizer, tree *orgtree.Cache, metrics *observability.Metrics, log logrus.FieldLogger) *Policy {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Policy{normalizer: normalizer, tree: tree, metrics: metrics, log: log}
}

func viewBases(recordType string) []string {
	if recordType == TypeNPC {
		return []string{PermNPCView, PermNPCEdit}
	}
	return []string{PermView, PermEdit}
}

func editBases(recordType string) []string {
	if recordType == TypeNPC {
		return []string{PermNPCEdit}
	}
	return []string{PermEdit}
}

// scopeFor resolves the caller's allowed-unit scope for the given permission
// bases and venue. Empty satisfying set means deny; a satisfying office at
// the root unit short-circuits to the unrestricted sentinel without touching
// the tree.
func (p *Policy) scopeFor(ctx context.Context, actor *authz.Actor, bases []string, venue string) (authz.UnitScope, error) {
	perms := p.normalizer.Normalize(bases, venue, authz.Strict)
	units := authz.UnitsSatisfying(perms, actor.Offices)
	if len(units) == 0 {
		return authz.UnitScope{}, authz.Denied("")
	}
	if units.Unrestricted() {
		return authz.Unrestricted(), nil
	}
	tree, err := p.tree.Load(ctx)
	if err != nil {
		return authz.UnitScope{}, err
	}
	return tree.ReachableFrom(units.Slice())
}

// checkScoped denies unless every given org unit falls inside the caller's
// resolved scope for the permission bases.
func (p *Policy) checkScoped(ctx context.Context, actor *authz.Actor, bases []string, venue string, units ...int) error {
	scope, err := p.scopeFor(ctx, actor, bases, venue)
	if err != nil {
		return err
	}
	for _, unit := range units {
		if !scope.Permits(unit) {
			return authz.Denied("")
		}
	}
	return nil
}

// AuthorizeList gates list/findOne/count and rewrites the filter in place: it
// resolves the type filter (default PC, "all" drops the type predicate,
// anything else is a request error), evaluates the matching view permissions
// with the filter venue, and conjoins the allowed-unit restriction.
func (p *Policy) AuthorizeList(ctx context.Context, actor *authz.Actor, f *query.Filter) error {
	start := time.Now()
	err := p.authorizeList(ctx, actor, f)
	p.record("list", start, err)
	return err
}

func (p *Policy) authorizeList(ctx context.Context, actor *authz.Actor, f *query.Filter) error {
	var bases []string
	typeVal, ok := query.FieldValue(f.Where, "type")
	if !ok {
		f.Where = query.Conjoin(f.Where, query.Eq{Field: "type", Value: TypePC})
		bases = viewBases(TypePC)
	} else {
		typeStr, _ := typeVal.(string)
		switch typeStr {
		case TypePC, TypeNPC:
			bases = viewBases(typeStr)
		case "all":
			f.Where = query.WithoutField(f.Where, "type")
			bases = append(viewBases(TypePC), viewBases(TypeNPC)...)
		default:
			return authz.BadRequest("invalid filter type")
		}
	}

	venue, _ := query.FieldValue(f.Where, "venue")
	venueStr, _ := venue.(string)
	scope, err := p.scopeFor(ctx, actor, bases, venueStr)
	if err != nil {
		return err
	}
	authz.Restrict(f, scope)
	return nil
}

// AuthorizeGet gates a single-record fetch after the record is loaded: owners
// always see their own characters; everyone else needs a view permission
// whose scope covers the record's org unit.
func (p *Policy) AuthorizeGet(ctx context.Context, actor *authz.Actor, ch *Character) error {
	start := time.Now()
	err := p.authorizeView(ctx, actor, ch)
	p.record("get", start, err)
	return err
}

func (p *Policy) authorizeView(ctx context.Context, actor *authz.Actor, ch *Character) error {
	if actor.Owns(ch.UserID) {
		return nil
	}
	return p.checkScoped(ctx, actor, viewBases(ch.Type), ch.Venue, ch.OrgUnit)
}

// ValidateCreate rejects malformed creation payloads independent of the
// caller. Creation never doubles as update, NPCs never carry an owner, and
// PCs always do.
func (p *Policy) ValidateCreate(ch *Character) error {
	if ch.ID != 0 {
		return authz.BadRequest("cannot supply an id on create")
	}
	if !ValidType(ch.Type) {
		return authz.BadRequest("invalid character type")
	}
	if !p.normalizer.KnownVenue(ch.Venue) {
		return authz.BadRequest("invalid venue")
	}
	if ch.Name == "" {
		return authz.BadRequest("character name is required")
	}
	if ch.OrgUnit == 0 {
		return authz.BadRequest("orgunit is required")
	}
	switch ch.Type {
	case TypeNPC:
		if ch.UserID != nil {
			return authz.BadRequest("an NPC cannot have a userid")
		}
	case TypePC:
		if ch.UserID == nil {
			return authz.BadRequest("a PC requires a userid")
		}
	}
	return nil
}

// AuthorizeCreate gates creation of a validated payload. Creating a PC for
// yourself needs no role at all; anything else needs the edit permission for
// the record type scoped to the target org unit.
func (p *Policy) AuthorizeCreate(ctx context.Context, actor *authz.Actor, ch *Character) error {
	start := time.Now()
	err := p.authorizeCreate(ctx, actor, ch)
	p.record("create", start, err)
	return err
}

func (p *Policy) authorizeCreate(ctx context.Context, actor *authz.Actor, ch *Character) error {
	if ch.Type == TypePC && actor.Owns(ch.UserID) {
		return nil
	}
	return p.checkScoped(ctx, actor, editBases(ch.Type), ch.Venue, ch.OrgUnit)
}

// AuthorizeReplace gates a whole-object update against the existing record.
// Type, venue, an already-set owner and the org unit are immutable through
// this path; each violation is its own request error so the caller learns
// exactly what to fix. Owners may edit their own characters without a role.
func (p *Policy) AuthorizeReplace(ctx context.Context, actor *authz.Actor, existing, incoming *Character) error {
	start := time.Now()
	err := p.authorizeReplace(ctx, actor, existing, incoming)
	p.record("replace", start, err)
	return err
}

func (p *Policy) authorizeReplace(ctx context.Context, actor *authz.Actor, existing, incoming *Character) error {
	if incoming.Type != "" && incoming.Type != existing.Type {
		return authz.BadRequest("character type cannot be changed")
	}
	if incoming.Venue != "" && incoming.Venue != existing.Venue {
		return authz.BadRequest("character venue cannot be changed")
	}
	if incoming.OrgUnit != 0 && incoming.OrgUnit != existing.OrgUnit {
		return authz.BadRequest("orgunit can only be changed through move")
	}
	if existing.UserID != nil && incoming.UserID != nil && *incoming.UserID != *existing.UserID {
		return authz.BadRequest("userid cannot be changed once set")
	}
	if actor.Owns(existing.UserID) {
		return nil
	}
	return p.checkScoped(ctx, actor, editBases(existing.Type), existing.Venue, existing.OrgUnit)
}

// AuthorizeDelete gates the logical delete: same ownership-or-edit rule as
// replace, scoped to the record's current org unit.
func (p *Policy) AuthorizeDelete(ctx context.Context, actor *authz.Actor, ch *Character) error {
	start := time.Now()
	err := p.authorizeEdit(ctx, actor, ch)
	p.record("delete", start, err)
	return err
}

func (p *Policy) authorizeEdit(ctx context.Context, actor *authz.Actor, ch *Character) error {
	if actor.Owns(ch.UserID) {
		return nil
	}
	return p.checkScoped(ctx, actor, editBases(ch.Type), ch.Venue, ch.OrgUnit)
}

// AuthorizeMove gates an org-unit change. A no-op move is a request error
// even for unrestricted callers, and the edit permission must cover BOTH the
// source and the destination unit so a unit-scoped role can neither pull a
// record in from elsewhere nor push one out of reach. Ownership grants
// nothing here.
func (p *Policy) AuthorizeMove(ctx context.Context, actor *authz.Actor, ch *Character, dest int) error {
	start := time.Now()
	err := p.authorizeMove(ctx, actor, ch, dest)
	p.record("move", start, err)
	return err
}

func (p *Policy) authorizeMove(ctx context.Context, actor *authz.Actor, ch *Character, dest int) error {
	if dest == 0 {
		return authz.BadRequest("destination orgunit is required")
	}
	if dest == ch.OrgUnit {
		return authz.BadRequest("character is already in that orgunit")
	}
	return p.checkScoped(ctx, actor, editBases(ch.Type), ch.Venue, ch.OrgUnit, dest)
}

// AuthorizeLink gates attaching a tag. The authorization check runs first so
// an unprivileged caller learns nothing about the tag; only then is the
// venue/type pairing validated, and a mismatch is a data problem, not an
// access one.
func (p *Policy) AuthorizeLink(ctx context.Context, actor *authz.Actor, ch *Character, tag *tags.Tag) error {
	start := time.Now()
	err := p.authorizeLink(ctx, actor, ch, tag)
	p.record("link", start, err)
	return err
}

func (p *Policy) authorizeLink(ctx context.Context, actor *authz.Actor, ch *Character, tag *tags.Tag) error {
	if err := p.authorizeEdit(ctx, actor, ch); err != nil {
		return err
	}
	if tag.Venue != ch.Venue {
		return authz.BadRequest("tag venue does not match character venue")
	}
	if tag.Type != ch.Type {
		return authz.BadRequest("tag type does not match character type")
	}
	return nil
}

// AuthorizeUnlink gates detaching a tag: the same ownership-or-edit rule,
// with no compatibility concern.
func (p *Policy) AuthorizeUnlink(ctx context.Context, actor *authz.Actor, ch *Character) error {
	start := time.Now()
	err := p.authorizeEdit(ctx, actor, ch)
	p.record("unlink", start, err)
	return err
}

// AuthorizeRelated gates reading a character's linked tags: the same
// ownership-or-view rule as a single-record fetch.
func (p *Policy) AuthorizeRelated(ctx context.Context, actor *authz.Actor, ch *Character) error {
	start := time.Now()
	err := p.authorizeView(ctx, actor, ch)
	p.record("related", start, err)
	return err
}

func (p *Policy) record(operation string, start time.Time, err error) {
	decision := observability.DecisionAllow
	switch {
	case authz.IsRequestError(err):
		decision = observability.DecisionInvalid
	case err != nil:
		decision = observability.DecisionDeny
	}
	p.metrics.RecordDecision(resourceName, operation, decision, time.Since(start))
}
