package cook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chefos/internal/core/recipe"
	"chefos/internal/core/session"
	"chefos/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExtractor struct {
	set *recipe.IngredientSet
	err error
}

func (s *stubExtractor) Extract(ctx context.Context, q recipe.DishQuery) (*recipe.IngredientSet, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.set, nil
}

type stubAdapter struct {
	calls int
	err   error
}

func (s *stubAdapter) Adapt(ctx context.Context, q recipe.DishQuery, confirmedMandatory, confirmedExtras, missingExtras []string) (*recipe.Recipe, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &recipe.Recipe{
		Mode:      recipe.OutputNarrative,
		Narrative: "The Fix: none needed.\nThe Recipe: cook " + q.Name + ".",
	}, nil
}

type testServer struct {
	engine    *gin.Engine
	extractor *stubExtractor
	adapter   *stubAdapter
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ex := &stubExtractor{set: &recipe.IngredientSet{
		Mandatory:     []string{"Chicken", "Butter"},
		Substitutable: []string{"Cream"},
		Staple:        []string{"Salt"},
	}}
	ad := &stubAdapter{}
	svc := session.NewService(session.NewStore(time.Hour, nil), ex, ad,
		session.Options{MinServings: 1, MaxServings: 8, DefaultServings: 2, RawFallback: true}, nil)

	r := gin.New()
	NewHandler(svc, true).Register(r.Group("/api/v1"))
	return &testServer{engine: r, extractor: ex, adapter: ad}
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	ts.engine.ServeHTTP(w, req)
	return w
}

func (ts *testServer) create(t *testing.T) string {
	t.Helper()
	w := ts.do(http.MethodPost, "/api/v1/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code)
	var view session.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.NotEmpty(t, view.ID)
	return view.ID
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) session.View {
	t.Helper()
	var view session.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	return view
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) SessionErrorResponse {
	t.Helper()
	var resp SessionErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHandler_FullFlow(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)
	base := "/api/v1/sessions/" + id

	w := ts.do(http.MethodPost, base+"/analyze", `{"dish_name":"Butter Chicken","servings":4}`)
	require.Equal(t, http.StatusOK, w.Code)
	view := decodeView(t, w)
	require.NotNil(t, view.Ingredients)
	assert.Len(t, view.Ingredients.Mandatory, 2)
	assert.True(t, view.CanGenerate)
	assert.Equal(t, 4, view.Query.Servings)

	w = ts.do(http.MethodPut, base+"/ingredients", `{"name":"Cream","available":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"Cream"}, decodeView(t, w).MissingExtras)

	w = ts.do(http.MethodPost, base+"/recipe", "")
	require.Equal(t, http.StatusOK, w.Code)
	view = decodeView(t, w)
	require.NotNil(t, view.Recipe)
	assert.Contains(t, view.Recipe.Narrative, "Butter Chicken")

	w = ts.do(http.MethodGet, base+"/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/markdown")
	assert.True(t, strings.HasPrefix(w.Body.String(), "# Butter Chicken\n"))
	assert.Contains(t, w.Body.String(), "## Missing\n\n- Cream\n")

	w = ts.do(http.MethodPost, base+"/reset", "")
	require.Equal(t, http.StatusOK, w.Code)
	view = decodeView(t, w)
	assert.Nil(t, view.Query)
	assert.Nil(t, view.Recipe)

	w = ts.do(http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, common.ErrCodeSessionNotFound, decodeError(t, w).Code)
}

func TestHandler_MissingMandatoryBlocksGeneration(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)
	base := "/api/v1/sessions/" + id

	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, base+"/analyze", `{"dish_name":"Butter Chicken"}`).Code)

	w := ts.do(http.MethodPut, base+"/ingredients", `{"name":"Butter","available":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	view := decodeView(t, w)
	assert.True(t, view.Blocked)
	assert.False(t, view.CanGenerate)

	w = ts.do(http.MethodPost, base+"/recipe", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, common.ErrCodeMissingMandatory, decodeError(t, w).Code)
	assert.Zero(t, ts.adapter.calls)
}

func TestHandler_EmptyMandatoryReturnsSession(t *testing.T) {
	ts := newTestServer(t)
	ts.extractor.set = &recipe.IngredientSet{Staple: []string{"Salt"}}
	id := ts.create(t)

	w := ts.do(http.MethodPost, "/api/v1/sessions/"+id+"/analyze", `{"dish_name":"Water"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, common.ErrCodeEmptyMandatoryList, resp.Code)
	require.NotNil(t, resp.Session)
	require.NotNil(t, resp.Session.Ingredients)
	assert.Len(t, resp.Session.Ingredients.Staple, 1)
}

func TestHandler_Errors(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)
	base := "/api/v1/sessions/" + id

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"malformed body", http.MethodPost, base + "/analyze", `{"dish_name":`, http.StatusBadRequest, common.ErrCodeInvalidRequest},
		{"blank dish", http.MethodPost, base + "/analyze", `{"dish_name":"   "}`, http.StatusBadRequest, common.ErrCodeInvalidDish},
		{"servings out of range", http.MethodPost, base + "/analyze", `{"dish_name":"Dal","servings":20}`, http.StatusBadRequest, common.ErrCodeInvalidDish},
		{"toggle before analyze", http.MethodPut, base + "/ingredients", `{"name":"Salt","available":true}`, http.StatusConflict, common.ErrCodeNoDishAnalyzed},
		{"toggle missing flag", http.MethodPut, base + "/ingredients", `{"name":"Salt"}`, http.StatusBadRequest, common.ErrCodeInvalidRequest},
		{"generate before analyze", http.MethodPost, base + "/recipe", "", http.StatusConflict, common.ErrCodeNoDishAnalyzed},
		{"export before analyze", http.MethodGet, base + "/export", "", http.StatusConflict, common.ErrCodeNoDishAnalyzed},
		{"unknown session", http.MethodPost, "/api/v1/sessions/nope/reset", "", http.StatusNotFound, common.ErrCodeSessionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestHandler_ModelFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.extractor.err = common.WrapError(common.ErrConnection, context.DeadlineExceeded)
	id := ts.create(t)

	w := ts.do(http.MethodPost, "/api/v1/sessions/"+id+"/analyze", `{"dish_name":"Pho"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, common.ErrCodeConnection, resp.Code)
	assert.NotEmpty(t, resp.Details)
	assert.Nil(t, resp.Session)

	// 失敗不影響會話原本的內容
	w = ts.do(http.MethodGet, "/api/v1/sessions/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decodeView(t, w).Ingredients)
}

func TestHandler_UnknownIngredient(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)
	base := "/api/v1/sessions/" + id
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, base+"/analyze", `{"dish_name":"Butter Chicken"}`).Code)

	w := ts.do(http.MethodPut, base+"/ingredients", `{"name":"Saffron","available":false}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, common.ErrCodeUnknownIngredient, decodeError(t, w).Code)
}
