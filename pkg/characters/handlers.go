package characters

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/larpkeep/characterhub/pkg/contextkeys"
	"github.com/larpkeep/characterhub/pkg/httputil"
	"github.com/larpkeep/characterhub/pkg/query"
	"github.com/larpkeep/characterhub/pkg/tags"
)

// Handlers exposes the character REST surface.
type Handlers struct {
	store    *Store
	tagStore *tags.Store
	policy   *Policy
	log      logrus.FieldLogger
}

// NewHandlers builds the character handlers.
func NewHandlers(store *Store, tagStore *tags.Store, policy *Policy, log logrus.FieldLogger) *Handlers {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handlers{store: store, tagStore: tagStore, policy: policy, log: log}
}

// Register attaches the character routes to the router.
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/characters", h.List).Methods(http.MethodGet)
	r.HandleFunc("/characters", h.Create).Methods(http.MethodPost)
	r.HandleFunc("/characters/findOne", h.FindOne).Methods(http.MethodGet)
	r.HandleFunc("/characters/count", h.Count).Methods(http.MethodGet)
	r.HandleFunc("/characters/me", h.Me).Methods(http.MethodGet)
	r.HandleFunc("/characters/{id:[0-9]+}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/characters/{id:[0-9]+}", h.Replace).Methods(http.MethodPut)
	r.HandleFunc("/characters/{id:[0-9]+}", h.Delete).Methods(http.MethodDelete)
	r.HandleFunc("/characters/{id:[0-9]+}/move", h.Move).Methods(http.MethodPost)
	r.HandleFunc("/characters/{id:[0-9]+}/tags", h.Tags).Methods(http.MethodGet)
	r.HandleFunc("/characters/{id:[0-9]+}/tags/{tagId:[0-9]+}", h.LinkTag).Methods(http.MethodPut)
	r.HandleFunc("/characters/{id:[0-9]+}/tags/{tagId:[0-9]+}", h.UnlinkTag).Methods(http.MethodDelete)
}

func (h *Handlers) scopedFilter(w http.ResponseWriter, r *http.Request) (*query.Filter, bool) {
	raw, _ := httputil.QueryFilter(r)
	f, err := query.ParseFilter(raw)
	if err != nil {
		httputil.WriteRequestError(w, err.Error())
		return nil, false
	}
	actor := contextkeys.ActorFrom(r.Context())
	if err := h.policy.AuthorizeList(r.Context(), actor, f); err != nil {
		httputil.WriteDomainError(w, err)
		return nil, false
	}
	return f, true
}

// fetch loads a character by the id path variable, writing the error response
// on failure.
func (h *Handlers) fetch(w http.ResponseWriter, r *http.Request) (*Character, bool) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return nil, false
	}
	ch, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return nil, false
	}
	return ch, true
}

// List serves GET /characters.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	f, ok := h.scopedFilter(w, r)
	if !ok {
		return
	}
	list, err := h.store.List(r.Context(), f)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if list == nil {
		list = []*Character{}
	}
	httputil.WriteSuccess(w, list)
}

// FindOne serves GET /characters/findOne: the first record matching the
// filter.
func (h *Handlers) FindOne(w http.ResponseWriter, r *http.Request) {
	f, ok := h.scopedFilter(w, r)
	if !ok {
		return
	}
	f.Limit = 1
	list, err := h.store.List(r.Context(), f)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if len(list) == 0 {
		httputil.WriteNotFound(w, ErrNotFound.Error())
		return
	}
	httputil.WriteSuccess(w, list[0])
}

// Count serves GET /characters/count.
func (h *Handlers) Count(w http.ResponseWriter, r *http.Request) {
	f, ok := h.scopedFilter(w, r)
	if !ok {
		return
	}
	count, err := h.store.Count(r.Context(), f.Where)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]int64{"count": count})
}

// Me serves GET /characters/me: the caller's own player characters. Ownership
// is the whole authorization, so no policy check runs.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	actor := contextkeys.ActorFrom(r.Context())
	f := &query.Filter{Where: query.And{Preds: []query.Predicate{
		query.Eq{Field: "userid", Value: actor.UserID},
		query.Eq{Field: "type", Value: TypePC},
	}}}
	list, err := h.store.List(r.Context(), f)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if list == nil {
		list = []*Character{}
	}
	httputil.WriteSuccess(w, list)
}

// Get serves GET /characters/{id}.
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	ch, ok := h.fetch(w, r)
	if !ok {
		return
	}
	actor := contextkeys.ActorFrom(r.Context())
	if err := h.policy.AuthorizeGet(r.Context(), actor, ch); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, ch)
}

// Create serves POST /characters. New characters start active.
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	var ch Character
	if !httputil.ParseJSONOrError(w, r, &ch) {
		return
	}
	if err := h.policy.ValidateCreate(&ch); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	actor := contextkeys.ActorFrom(r.Context())
	if err := h.policy.AuthorizeCreate(r.Context(), actor, &ch); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	ch.Active = true
	if err := h.store.Create(r.Context(), &ch); err != nil {
		h.writeStoreError(w, err)
		return
	}
	httputil.WriteCreated(w, &ch)
}

// Replace serves PUT /characters/{id}. Only the name and a not-yet-set owner
// can change here; the policy rejects attempts on the immutable fields.
func (h *Handlers) Replace(w http.ResponseWriter, r *http.Request) {
	ch, ok := h.fetch(w, r)
	if !ok {
		return
	}
	var incoming Character
	if !httputil.ParseJSONOrError(w, r, &incoming) {
		return
	}
	if incoming == (Character{}) {
		httputil.WriteRequestError(w, "no fields supplied")
		return
	}
	actor := contextkeys.ActorFrom(r.Context())
	if err := h.policy.AuthorizeReplace(r.Context(), actor, ch, &incoming); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if incoming.Name != "" {
		ch.Name = incoming.Name
	}
	if ch.UserID == nil && incoming.UserID != nil {
		ch.UserID = incoming.UserID
	}
	if err := h.store.Update(r.Context(), ch); err != nil {
		h.writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, ch)
}

// Delete serves DELETE /characters/{id}: a logical delete that clears the
// active flag and keeps the row.
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	ch, ok := h.fetch(w, r)
	if !ok {
		return
	}
	actor := contextkeys.ActorFrom(r.Context())
	if err := h.policy.AuthorizeDelete(r.Context(), actor, ch); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if err := h.store.Deactivate(r.Context(), ch.ID); err != nil {
		h.writeStoreError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// Move serves POST /characters/{id}/move with body {"orgunit": n}.
func (h *Handlers) Move(w http.ResponseWriter, r *http.Request) {
	ch, ok := h.fetch(w, r)
	if !ok {
		return
	}
	var body struct {
		OrgUnit int `json:"orgunit"`
	}
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	actor := contextkeys.ActorFrom(r.Context())
	if err := h.policy.AuthorizeMove(r.Context(), actor, ch, body.OrgUnit); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if err := h.store.SetOrgUnit(r.Context(), ch.ID, body.OrgUnit); err != nil {
		h.writeStoreError(w, err)
		return
	}
	ch.OrgUnit = body.OrgUnit
	httputil.WriteSuccess(w, ch)
}

// Tags serves GET /characters/{id}/tags.
func (h *Handlers) Tags(w http.ResponseWriter, r *http.Request) {
	ch, ok := h.fetch(w, r)
	if !ok {
		return
	}
	actor := contextkeys.ActorFrom(r.Context())
	if err := h.policy.AuthorizeRelated(r.Context(), actor, ch); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	list, err := h.store.Tags(r.Context(), ch.ID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if list == nil {
		list = []*tags.Tag{}
	}
	httputil.WriteSuccess(w, list)
}

// LinkTag serves PUT /characters/{id}/tags/{tagId}.
func (h *Handlers) LinkTag(w http.ResponseWriter, r *http.Request) {
	ch, ok := h.fetch(w, r)
	if !ok {
		return
	}
	tagID, ok := httputil.ParsePathInt64OrError(w, r, "tagId")
	if !ok {
		return
	}
	tag, err := h.tagStore.Get(r.Context(), tagID)
	if err != nil {
		if errors.Is(err, tags.ErrNotFound) {
			httputil.WriteNotFound(w, err.Error())
			return
		}
		h.writeStoreError(w, err)
		return
	}
	actor := contextkeys.ActorFrom(r.Context())
	if err := h.policy.AuthorizeLink(r.Context(), actor, ch, tag); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if err := h.store.LinkTag(r.Context(), ch.ID, tag.ID); err != nil {
		h.writeStoreError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// UnlinkTag serves DELETE /characters/{id}/tags/{tagId}.
func (h *Handlers) UnlinkTag(w http.ResponseWriter, r *http.Request) {
	ch, ok := h.fetch(w, r)
	if !ok {
		return
	}
	tagID, ok := httputil.ParsePathInt64OrError(w, r, "tagId")
	if !ok {
		return
	}
	actor := contextkeys.ActorFrom(r.Context())
	if err := h.policy.AuthorizeUnlink(r.Context(), actor, ch); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if err := h.store.UnlinkTag(r.Context(), ch.ID, tagID); err != nil {
		h.writeStoreError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *Handlers) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httputil.WriteNotFound(w, err.Error())
	case errors.Is(err, query.ErrUnknownField):
		httputil.WriteRequestError(w, err.Error())
	default:
		h.log.WithError(err).Error("character store error")
		httputil.WriteInternalError(w)
	}
}
