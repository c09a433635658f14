package tags

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/larpkeep/characterhub/pkg/contextkeys"
	"github.com/larpkeep/characterhub/pkg/httputil"
	"github.com/larpkeep/characterhub/pkg/query"
)

// Handlers exposes the tag REST surface.
type Handlers struct {
	store  *Store
	policy *Policy
	log    logrus.FieldLogger
}

// NewHandlers builds the tag handlers.
func NewHandlers(store *Store, policy *Policy, log logrus.FieldLogger) *Handlers {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handlers{store: store, policy: policy, log: log}
}

// Register attaches the tag routes to the router.
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/tags", h.List).Methods(http.MethodGet)
	r.HandleFunc("/tags", h.Create).Methods(http.MethodPost)
	r.HandleFunc("/tags/findOne", h.FindOne).Methods(http.MethodGet)
	r.HandleFunc("/tags/count", h.Count).Methods(http.MethodGet)
	r.HandleFunc("/tags/{id:[0-9]+}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/tags/{id:[0-9]+}", h.Replace).Methods(http.MethodPut)
	r.HandleFunc("/tags/{id:[0-9]+}", h.Delete).Methods(http.MethodDelete)
}

func (h *Handlers) scopedFilter(w http.ResponseWriter, r *http.Request) (*query.Filter, bool) {
	raw, _ := httputil.QueryFilter(r)
	f, err := query.ParseFilter(raw)
	if err != nil {
		httputil.WriteRequestError(w, err.Error())
		return nil, false
	}
	actor := contextkeys.ActorFrom(r.Context())
	if err := h.policy.AuthorizeList(actor, f); err != nil {
		httputil.WriteDomainError(w, err)
		return nil, false
	}
	return f, true
}

// List serves GET /tags.
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
		list = []*Tag{}
	}
	httputil.WriteSuccess(w, list)
}

// FindOne serves GET /tags/findOne: the first record matching the filter.
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

// Count serves GET /tags/count.
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

// Get serves GET /tags/{id}.
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	tag, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	actor := contextkeys.ActorFrom(r.Context())
	if err := h.policy.AuthorizeGet(actor, tag); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, tag)
}

// Create serves POST /tags.
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	var tag Tag
	if !httputil.ParseJSONOrError(w, r, &tag) {
		return
	}
	if tag.ID != 0 {
		httputil.WriteRequestError(w, "cannot supply an id on create")
		return
	}
	if err := h.policy.ValidateNew(&tag); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	actor := contextkeys.ActorFrom(r.Context())
	if err := h.policy.AuthorizeSave(actor, tag.Venue); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if err := h.store.Create(r.Context(), &tag); err != nil {
		h.writeStoreError(w, err)
		return
	}
	httputil.WriteCreated(w, &tag)
}

// Replace serves PUT /tags/{id}: a whole-object update. The permission runs
// against the target venue from the payload.
func (h *Handlers) Replace(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.store.Get(r.Context(), id); err != nil {
		h.writeStoreError(w, err)
		return
	}

	var tag Tag
	if !httputil.ParseJSONOrError(w, r, &tag) {
		return
	}
	tag.ID = id
	if err := h.policy.ValidateNew(&tag); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	actor := contextkeys.ActorFrom(r.Context())
	if err := h.policy.AuthorizeSave(actor, tag.Venue); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if err := h.store.Update(r.Context(), &tag); err != nil {
		h.writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, &tag)
}

// Delete serves DELETE /tags/{id}. The record is fetched first solely to
// learn its venue for the permission check.
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	tag, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	actor := contextkeys.ActorFrom(r.Context())
	if err := h.policy.AuthorizeDelete(actor, tag); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
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
		h.log.WithError(err).Error("tag store error")
		httputil.WriteInternalError(w)
	}
}
