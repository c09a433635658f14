package characters

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larpkeep/characterhub/pkg/authz"
	"github.com/larpkeep/characterhub/pkg/contextkeys"
	"github.com/larpkeep/characterhub/pkg/httputil"
	"github.com/larpkeep/characterhub/pkg/orgtree"
	"github.com/larpkeep/characterhub/pkg/tags"
)

func newTestRouter(t *testing.T, actor *authz.Actor) (*mux.Router, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	normalizer := authz.NewNormalizer(policyVenues)
	tree := orgtree.NewCache(treeFetcher{}, time.Minute)
	policy := NewPolicy(normalizer, tree, nil, nil)
	handlers := NewHandlers(NewStore(db), tags.NewStore(db), policy, nil)

	router := mux.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(contextkeys.WithActor(r.Context(), actor)))
		})
	})
	handlers.Register(router)
	return router, mock
}

func doRequest(router *mux.Router, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error.Code
}

func expectGetCharacter(mock sqlmock.Sqlmock, id int64, userID interface{}, typ, venue string, orgunit int) {
	mock.ExpectQuery("SELECT id, userid, name, type, venue, orgunit, active FROM characters WHERE id = $1").
		WithArgs(id).
		WillReturnRows(characterRows().AddRow(id, userID, "Marcus", typ, venue, orgunit, true))
}

func TestGetOutOfScopeIsForbidden(t *testing.T) {
	actor := &authz.Actor{UserID: 99, Offices: map[int][]string{4: {"character_edit"}}}
	router, mock := newTestRouter(t, actor)
	expectGetCharacter(mock, 10, 5, TypePC, "space", 7)

	rec := doRequest(router, http.MethodGet, "/characters/10", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, authz.CodeAccessDenied, errorCode(t, rec))
}

func TestGetMissingIsNotFound(t *testing.T) {
	actor := &authz.Actor{UserID: 99, Offices: map[int][]string{1: {"admin"}}}
	router, mock := newTestRouter(t, actor)
	mock.ExpectQuery("SELECT id, userid, name, type, venue, orgunit, active FROM characters WHERE id = $1").
		WithArgs(int64(42)).
		WillReturnRows(characterRows())

	rec := doRequest(router, http.MethodGet, "/characters/42", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetOwnCharacter(t *testing.T) {
	actor := &authz.Actor{UserID: 5}
	router, mock := newTestRouter(t, actor)
	expectGetCharacter(mock, 10, 5, TypePC, "space", 7)

	rec := doRequest(router, http.MethodGet, "/characters/10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var ch Character
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ch))
	assert.Equal(t, int64(10), ch.ID)
}

func TestCreateNPCWithOwnerIsRequestError(t *testing.T) {
	actor := &authz.Actor{UserID: 5, Offices: map[int][]string{1: {"admin"}}}
	router, _ := newTestRouter(t, actor)

	rec := doRequest(router, http.MethodPost, "/characters",
		`{"name":"Guard","type":"NPC","venue":"space","orgunit":4,"userid":5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, authz.CodeRequestError, errorCode(t, rec))
}

func TestCreateSelfPC(t *testing.T) {
	actor := &authz.Actor{UserID: 5}
	router, mock := newTestRouter(t, actor)
	mock.ExpectQuery(`INSERT INTO characters (userid, name, type, venue, orgunit, active)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`).
		WithArgs(int64(5), "Marcus", "PC", "space", 4, true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))

	rec := doRequest(router, http.MethodPost, "/characters",
		`{"name":"Marcus","type":"PC","venue":"space","orgunit":4,"userid":5}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var ch Character
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ch))
	assert.Equal(t, int64(10), ch.ID)
	assert.True(t, ch.Active)
}

func TestMoveNoOpIsRequestError(t *testing.T) {
	actor := &authz.Actor{UserID: 99, Offices: map[int][]string{1: {"admin"}}}
	router, mock := newTestRouter(t, actor)
	expectGetCharacter(mock, 10, 5, TypePC, "space", 4)

	rec := doRequest(router, http.MethodPost, "/characters/10/move", `{"orgunit":4}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, authz.CodeRequestError, errorCode(t, rec))
}

func TestLinkMismatchedTagIsRequestError(t *testing.T) {
	actor := &authz.Actor{UserID: 99, Offices: map[int][]string{1: {"admin"}}}
	router, mock := newTestRouter(t, actor)
	expectGetCharacter(mock, 10, 5, TypePC, "space", 4)
	mock.ExpectQuery("SELECT id, name, type, venue FROM tags WHERE id = $1").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "type", "venue"}).
			AddRow(3, "Guard", "NPC", "cam-anarch"))

	rec := doRequest(router, http.MethodPut, "/characters/10/tags/3", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, authz.CodeRequestError, errorCode(t, rec))
}

func TestDeleteIsLogical(t *testing.T) {
	actor := &authz.Actor{UserID: 5}
	router, mock := newTestRouter(t, actor)
	expectGetCharacter(mock, 10, 5, TypePC, "space", 4)
	mock.ExpectExec("UPDATE characters SET active = FALSE WHERE id = $1").
		WithArgs(int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := doRequest(router, http.MethodDelete, "/characters/10", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceImmutableVenue(t *testing.T) {
	actor := &authz.Actor{UserID: 5}
	router, mock := newTestRouter(t, actor)
	expectGetCharacter(mock, 10, 5, TypePC, "space", 4)

	rec := doRequest(router, http.MethodPut, "/characters/10", `{"venue":"cam-anarch"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "venue")
}

func TestMeListsOwnPCs(t *testing.T) {
	actor := &authz.Actor{UserID: 5}
	router, mock := newTestRouter(t, actor)
	mock.ExpectQuery("SELECT id, userid, name, type, venue, orgunit, active FROM characters WHERE (userid = $1 AND type = $2) ORDER BY id").
		WithArgs(int64(5), "PC").
		WillReturnRows(characterRows().AddRow(10, 5, "Marcus", "PC", "space", 4, true))

	rec := doRequest(router, http.MethodGet, "/characters/me", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []Character
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Marcus", list[0].Name)
}

func TestListUnrestrictedNPCWithVenue(t *testing.T) {
	actor := &authz.Actor{UserID: 99, Offices: map[int][]string{1: {"npc_view_space"}}}
	router, mock := newTestRouter(t, actor)
	mock.ExpectQuery("SELECT id, userid, name, type, venue, orgunit, active FROM characters WHERE (type = $1 AND venue = $2) ORDER BY id").
		WithArgs("NPC", "space").
		WillReturnRows(characterRows().AddRow(11, nil, "Guard", "NPC", "space", 7, true))

	filter := url.QueryEscape(`{"where":{"and":[{"type":"NPC"},{"venue":"space"}]}}`)
	rec := doRequest(router, http.MethodGet, "/characters?filter="+filter, "")
	require.Equal(t, http.StatusOK, rec.Code)
}
