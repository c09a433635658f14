package tags

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/larpkeep/characterhub/pkg/authz"
	"github.com/larpkeep/characterhub/pkg/observability"
	"github.com/larpkeep/characterhub/pkg/query"
)

// Permission bases gating tag operations.
const (
	PermNPCView = "npc_view"
	PermEdit    = "character_tag_edit"
	PermDelete  = "character_tag_delete"
)

const resourceName = "tag"

// Policy encodes the tag-specific authorization rules. Tags carry no org
// unit, so checks reduce to venue-qualified permission evaluation with no
// containment scoping.
type Policy struct {
	normalizer *authz.Normalizer
	metrics    *observability.Metrics
	log        logrus.FieldLogger
}

// NewPolicy builds the tag policy.
func NewPolicy(normalizer *authz.Normalizer, metrics *observability.Metrics, log logrus.FieldLogger) *Policy {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Policy{normalizer: normalizer, metrics: metrics, log: log}
}

// viewBases returns the permission bases needed to see tags of the given
// type. PC tags are open to any authenticated caller, expressed as the
// wildcard; only the NPC class is gated.
func viewBases(recordType string) []string {
	if recordType == TypeNPC {
		return []string{PermNPCView}
	}
	return []string{authz.WildcardPermission}
}

// requireView denies unless the bases include the wildcard or the caller
// holds a satisfying role. The wildcard is resolved here, before the
// normalizer ever sees the base list.
func (p *Policy) requireView(actor *authz.Actor, bases []string, venue string) error {
	for _, base := range bases {
		if base == authz.WildcardPermission {
			return nil
		}
	}
	perms := p.normalizer.Normalize(bases, venue, authz.Strict)
	if !authz.IsAuthorized(perms, actor.Offices) {
		return authz.Denied("")
	}
	return nil
}

// AuthorizeList gates list/findOne/count and adjusts the filter in place.
// PC listings are open to any authenticated caller; a missing type filter
// defaults to PC. NPC and "all" listings need a venue-qualified npc_view.
func (p *Policy) AuthorizeList(actor *authz.Actor, f *query.Filter) error {
	start := time.Now()
	err := p.authorizeList(actor, f)
	p.record("list", start, err)
	return err
}

func (p *Policy) authorizeList(actor *authz.Actor, f *query.Filter) error {
	bases := viewBases(TypePC)
	typeVal, ok := query.FieldValue(f.Where, "type")
	if !ok {
		f.Where = query.Conjoin(f.Where, query.Eq{Field: "type", Value: TypePC})
	} else {
		typeStr, _ := typeVal.(string)
		switch typeStr {
		case TypePC:
		case TypeNPC:
			bases = viewBases(TypeNPC)
		case "all":
			// Seeing the NPC slice is what the combined listing gates on.
			f.Where = query.WithoutField(f.Where, "type")
			bases = viewBases(TypeNPC)
		default:
			return authz.BadRequest("invalid filter type")
		}
	}

	venue, _ := query.FieldValue(f.Where, "venue")
	venueStr, _ := venue.(string)
	return p.requireView(actor, bases, venueStr)
}

// AuthorizeGet gates a single-record fetch after the record is loaded.
func (p *Policy) AuthorizeGet(actor *authz.Actor, tag *Tag) error {
	start := time.Now()
	err := p.authorizeGet(actor, tag)
	p.record("get", start, err)
	return err
}

func (p *Policy) authorizeGet(actor *authz.Actor, tag *Tag) error {
	return p.requireView(actor, viewBases(tag.Type), tag.Venue)
}

// ValidateNew rejects malformed tag payloads independent of the caller.
func (p *Policy) ValidateNew(tag *Tag) error {
	if !ValidType(tag.Type) {
		return authz.BadRequest("invalid tag type")
	}
	if !p.normalizer.KnownVenue(tag.Venue) {
		return authz.BadRequest("invalid venue")
	}
	if tag.Name == "" {
		return authz.BadRequest("tag name is required")
	}
	return nil
}

// AuthorizeSave gates create and whole-object update. The permission is
// checked against the target venue from the payload, not any existing record.
func (p *Policy) AuthorizeSave(actor *authz.Actor, venue string) error {
	start := time.Now()
	err := p.requirePerm(actor, PermEdit, venue)
	p.record("save", start, err)
	return err
}

// AuthorizeDelete gates deletion; the record's venue must already be known,
// fetching it first if the operation supplied only an id.
func (p *Policy) AuthorizeDelete(actor *authz.Actor, tag *Tag) error {
	start := time.Now()
	err := p.requirePerm(actor, PermDelete, tag.Venue)
	p.record("delete", start, err)
	return err
}

func (p *Policy) requirePerm(actor *authz.Actor, base, venue string) error {
	perms := p.normalizer.Normalize([]string{base}, venue, authz.Strict)
	if !authz.IsAuthorized(perms, actor.Offices) {
		return authz.Denied("")
	}
	return nil
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
