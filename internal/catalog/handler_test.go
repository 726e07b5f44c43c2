package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"otakuhub/internal/auth"
	"otakuhub/internal/events"
	"otakuhub/pkg/docstore"
	"otakuhub/pkg/models"
	"otakuhub/pkg/repository"
)

type fixture struct {
	router *gin.Engine
	db     *docstore.DB
	users  *repository.Repository[models.User]
	tokens auth.TokenService
}

// setup wires the catalog routes the way the server does: the gate on
// every request, then the read-only policy per group.
func setup(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := docstore.Open(docstore.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	users := repository.New[models.User](db, models.UserSchema)
	tokens := auth.TokenService{
		Secret:     []byte("test-secret"),
		Issuer:     "otakuhub",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	}

	router := gin.New()
	router.Use(auth.NewGate(tokens, users).Middleware())

	hub := events.NewHub()
	policy := auth.RequireAuthOrReadOnly()

	genres := repository.New[models.Genre](db, models.GenreSchema)
	NewHandler[models.Genre](genres, hub).
		RegisterRoutes(router.Group("/genres", policy))

	anime := repository.New[models.Anime](db, models.AnimeSchema)
	NewHandler[models.Anime](anime, hub).
		RegisterRoutes(router.Group("/anime", policy))

	reviews := repository.New[models.AnimeReview](db, models.AnimeReviewSchema)
	NewHandler[models.AnimeReview](reviews, hub).
		WithOwnership("user", func(r *models.AnimeReview) string { return r.User.ID }).
		RegisterRoutes(router.Group("/anime-reviews", policy))

	return &fixture{router: router, db: db, users: users, tokens: tokens}
}

func (f *fixture) addUser(t *testing.T, username string, superuser bool) *models.User {
	t.Helper()

	u, err := f.users.Create(context.Background(), map[string]any{
		"username":     username,
		"email":        username + "@x.com",
		"password":     "digest",
		"is_active":    true,
		"is_superuser": superuser,
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) do(t *testing.T, method, path string, body any, as *models.User) *httptest.ResponseRecorder {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		token, _, err := f.tokens.IssueAccess(as)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeDoc(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestCatalog_AnonymousReadsAllowed(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodGet, "/genres", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var items []any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Empty(t, items)
}

func TestCatalog_AnonymousMutationForbidden(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodPost, "/genres", map[string]any{"name": "Action"}, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestCatalog_BadTokenRejectedBeforePolicy(t *testing.T) {
	f := setup(t)

	req := httptest.NewRequest(http.MethodPost, "/genres", bytes.NewReader([]byte(`{"name":"Action"}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer not.a.jwt")

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// a bad token on a safe method is also a hard failure
	req = httptest.NewRequest(http.MethodGet, "/genres", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCatalog_CreateRetrieveUpdateDelete(t *testing.T) {
	f := setup(t)
	alice := f.addUser(t, "alice", false)

	w := f.do(t, http.MethodPost, "/genres", map[string]any{"name": "Action", "type": "anime"}, alice)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeDoc(t, w)
	id, _ := created["_id"].(string)
	require.NotEmpty(t, id)

	w = f.do(t, http.MethodGet, "/genres/"+id, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Action", decodeDoc(t, w)["name"])

	w = f.do(t, http.MethodPatch, "/genres/"+id, map[string]any{"type": "manga"}, alice)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "manga", decodeDoc(t, w)["type"])

	w = f.do(t, http.MethodDelete, "/genres/"+id, nil, alice)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodGet, "/genres/"+id, nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCatalog_MalformedIDIsBadRequest(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodGet, "/genres/not-a-uuid", nil, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCatalog_DuplicateNaturalKey(t *testing.T) {
	f := setup(t)
	alice := f.addUser(t, "alice", false)

	w := f.do(t, http.MethodPost, "/genres", map[string]any{"name": "Action"}, alice)
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, http.MethodPost, "/genres", map[string]any{"name": "Action"}, alice)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestCatalog_ClientSuppliedIDRejected(t *testing.T) {
	f := setup(t)
	alice := f.addUser(t, "alice", false)

	w := f.do(t, http.MethodPost, "/genres", map[string]any{
		"_id":  "550e8400-e29b-41d4-a716-446655440000",
		"name": "Action",
	}, alice)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCatalog_RelationEmbedding(t *testing.T) {
	f := setup(t)
	alice := f.addUser(t, "alice", false)

	w := f.do(t, http.MethodPost, "/genres", map[string]any{"name": "Action"}, alice)
	require.Equal(t, http.StatusCreated, w.Code)
	genreID := decodeDoc(t, w)["_id"].(string)

	w = f.do(t, http.MethodPost, "/anime", map[string]any{
		"title":  "Alpha",
		"genres": []any{genreID},
	}, alice)
	require.Equal(t, http.StatusCreated, w.Code)

	body := decodeDoc(t, w)
	genres, ok := body["genres"].([]any)
	require.True(t, ok)
	require.Len(t, genres, 1)
	embedded := genres[0].(map[string]any)
	require.Equal(t, "Action", embedded["name"])
	require.Equal(t, genreID, embedded["_id"])
}

func TestCatalog_MissingRelationIsNotFound(t *testing.T) {
	f := setup(t)
	alice := f.addUser(t, "alice", false)

	w := f.do(t, http.MethodPost, "/anime", map[string]any{
		"title":  "Alpha",
		"genres": []any{"550e8400-e29b-41d4-a716-446655440000"},
	}, alice)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCatalog_ReviewOwnership(t *testing.T) {
	f := setup(t)
	alice := f.addUser(t, "alice", false)
	bob := f.addUser(t, "bob", false)
	root := f.addUser(t, "root", true)

	w := f.do(t, http.MethodPost, "/anime", map[string]any{"title": "Alpha"}, alice)
	require.Equal(t, http.StatusCreated, w.Code)
	animeID := decodeDoc(t, w)["_id"].(string)

	// bob cannot write a review in alice's name
	w = f.do(t, http.MethodPost, "/anime-reviews", map[string]any{
		"user":    alice.ID,
		"anime":   animeID,
		"score":   8,
		"content": "forged",
	}, bob)
	require.Equal(t, http.StatusForbidden, w.Code)

	// alice writes her own review
	w = f.do(t, http.MethodPost, "/anime-reviews", map[string]any{
		"user":    alice.ID,
		"anime":   animeID,
		"score":   8,
		"content": "good",
	}, alice)
	require.Equal(t, http.StatusCreated, w.Code)
	reviewID := decodeDoc(t, w)["_id"].(string)

	// bob cannot touch it
	w = f.do(t, http.MethodPatch, "/anime-reviews/"+reviewID, map[string]any{"score": 1}, bob)
	require.Equal(t, http.StatusForbidden, w.Code)
	w = f.do(t, http.MethodDelete, "/anime-reviews/"+reviewID, nil, bob)
	require.Equal(t, http.StatusForbidden, w.Code)

	// alice can
	w = f.do(t, http.MethodPatch, "/anime-reviews/"+reviewID, map[string]any{"score": 9}, alice)
	require.Equal(t, http.StatusOK, w.Code)

	// and so can a superuser
	w = f.do(t, http.MethodDelete, "/anime-reviews/"+reviewID, nil, root)
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestCatalog_ReviewResponseOmitsCredential(t *testing.T) {
	f := setup(t)
	alice := f.addUser(t, "alice", false)

	w := f.do(t, http.MethodPost, "/anime", map[string]any{"title": "Alpha"}, alice)
	require.Equal(t, http.StatusCreated, w.Code)
	animeID := decodeDoc(t, w)["_id"].(string)

	w = f.do(t, http.MethodPost, "/anime-reviews", map[string]any{
		"user":    alice.ID,
		"anime":   animeID,
		"score":   8,
		"content": "good",
	}, alice)
	require.Equal(t, http.StatusCreated, w.Code)

	embedded, ok := decodeDoc(t, w)["user"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "alice", embedded["username"])
	require.NotContains(t, embedded, "password")

	// anonymous list must not see it either
	w = f.do(t, http.MethodGet, "/anime-reviews", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var items []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	listed, ok := items[0]["user"].(map[string]any)
	require.True(t, ok)
	require.NotContains(t, listed, "password")
}

func TestCatalog_ReviewOwnerCannotBeRepointed(t *testing.T) {
	f := setup(t)
	alice := f.addUser(t, "alice", false)
	bob := f.addUser(t, "bob", false)

	w := f.do(t, http.MethodPost, "/anime", map[string]any{"title": "Alpha"}, alice)
	require.Equal(t, http.StatusCreated, w.Code)
	animeID := decodeDoc(t, w)["_id"].(string)

	w = f.do(t, http.MethodPost, "/anime-reviews", map[string]any{
		"user":  alice.ID,
		"anime": animeID,
		"score": 8,
	}, alice)
	require.Equal(t, http.StatusCreated, w.Code)
	reviewID := decodeDoc(t, w)["_id"].(string)

	// alice cannot hand her review to bob
	w = f.do(t, http.MethodPatch, "/anime-reviews/"+reviewID, map[string]any{"user": bob.ID}, alice)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodGet, "/anime-reviews/"+reviewID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	owner := decodeDoc(t, w)["user"].(map[string]any)
	require.Equal(t, alice.ID, owner["_id"])

	// naming herself again is fine
	w = f.do(t, http.MethodPatch, "/anime-reviews/"+reviewID, map[string]any{
		"user":  alice.ID,
		"score": 9,
	}, alice)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestCatalog_ListNumericQueryFilter(t *testing.T) {
	f := setup(t)
	alice := f.addUser(t, "alice", false)

	for _, a := range []map[string]any{
		{"title": "Alpha", "year": 2020, "score": 8.1},
		{"title": "Beta", "year": 2021, "score": 6.4},
	} {
		w := f.do(t, http.MethodPost, "/anime", a, alice)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := f.do(t, http.MethodGet, "/anime?year=2020", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var items []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	require.Equal(t, "Alpha", items[0]["title"])

	w = f.do(t, http.MethodGet, "/anime?score=6.4", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	require.Equal(t, "Beta", items[0]["title"])
}

func TestCatalog_ListWithQueryFilter(t *testing.T) {
	f := setup(t)
	alice := f.addUser(t, "alice", false)

	for _, g := range []map[string]any{
		{"name": "Action", "type": "anime"},
		{"name": "Drama", "type": "anime"},
		{"name": "Isekai", "type": "manga"},
	} {
		w := f.do(t, http.MethodPost, "/genres", g, alice)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := f.do(t, http.MethodGet, "/genres?type=manga", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var items []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	require.Equal(t, "Isekai", items[0]["name"])
}
