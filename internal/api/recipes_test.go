package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"recipebox/internal/config"
	"recipebox/internal/model"
	"recipebox/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type mockRecipeStore struct {
	listFunc     func(ctx context.Context, ownerID uint, filter store.RecipeFilter) ([]model.Recipe, error)
	getFunc      func(ctx context.Context, ownerID, id uint) (*model.Recipe, error)
	createFunc   func(ctx context.Context, ownerID uint, p store.CreateRecipeParams) (*model.Recipe, error)
	updateFunc   func(ctx context.Context, ownerID, id uint, p store.UpdateRecipeParams) (*model.Recipe, error)
	deleteFunc   func(ctx context.Context, ownerID, id uint) error
	setImageFunc func(ctx context.Context, ownerID, id uint, filename string) (*model.Recipe, error)
	createCalls  int
	updateCalls  int
}

func (m *mockRecipeStore) List(ctx context.Context, ownerID uint, filter store.RecipeFilter) ([]model.Recipe, error) {
	return m.listFunc(ctx, ownerID, filter)
}

func (m *mockRecipeStore) Get(ctx context.Context, ownerID, id uint) (*model.Recipe, error) {
	return m.getFunc(ctx, ownerID, id)
}

func (m *mockRecipeStore) Create(ctx context.Context, ownerID uint, p store.CreateRecipeParams) (*model.Recipe, error) {
	m.createCalls++
	return m.createFunc(ctx, ownerID, p)
}

func (m *mockRecipeStore) Update(ctx context.Context, ownerID, id uint, p store.UpdateRecipeParams) (*model.Recipe, error) {
	m.updateCalls++
	return m.updateFunc(ctx, ownerID, id, p)
}

func (m *mockRecipeStore) Delete(ctx context.Context, ownerID, id uint) error {
	return m.deleteFunc(ctx, ownerID, id)
}

func (m *mockRecipeStore) SetImage(ctx context.Context, ownerID, id uint, filename string) (*model.Recipe, error) {
	return m.setImageFunc(ctx, ownerID, id, filename)
}

// newTestServer 构建一个不连数据库和 Redis 的测试服务器。
func newTestServer(recipes RecipeStore, tags TagStore, ingredients IngredientStore) (*Server, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	s := &Server{
		cfg:         &config.Config{},
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		recipes:     recipes,
		tags:        tags,
		ingredients: ingredients,
	}
	return s, gin.New()
}

func asUser(userID uint, handler gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", userID)
		handler(c)
	}
}

func doJSON(r *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestListRecipes_OwnerScoped(t *testing.T) {
	recipes := &mockRecipeStore{
		listFunc: func(ctx context.Context, ownerID uint, filter store.RecipeFilter) ([]model.Recipe, error) {
			if ownerID != 42 {
				t.Errorf("expected owner 42, got %d", ownerID)
			}
			return []model.Recipe{
				{ID: 2, Title: "Pancakes", TimeMinutes: 10, Price: decimal.RequireFromString("3.50")},
				{ID: 1, Title: "Omelette", TimeMinutes: 5, Price: decimal.RequireFromString("2.00")},
			}, nil
		},
	}
	s, r := newTestServer(recipes, nil, nil)
	r.GET("/recipes", asUser(42, s.handleListRecipes))

	w := doJSON(r, http.MethodGet, "/recipes", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp []recipeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp) != 2 || resp[0].ID != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestListRecipes_EmptyIsJSONArray(t *testing.T) {
	recipes := &mockRecipeStore{
		listFunc: func(ctx context.Context, ownerID uint, filter store.RecipeFilter) ([]model.Recipe, error) {
			return nil, nil
		},
	}
	s, r := newTestServer(recipes, nil, nil)
	r.GET("/recipes", asUser(1, s.handleListRecipes))

	w := doJSON(r, http.MethodGet, "/recipes", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := bytes.TrimSpace(w.Body.Bytes()); !bytes.Equal(got, []byte("[]")) {
		t.Fatalf("expected empty JSON array, got %s", got)
	}
}

func TestListRecipes_Filters(t *testing.T) {
	var captured store.RecipeFilter
	recipes := &mockRecipeStore{
		listFunc: func(ctx context.Context, ownerID uint, filter store.RecipeFilter) ([]model.Recipe, error) {
			captured = filter
			return nil, nil
		},
	}
	s, r := newTestServer(recipes, nil, nil)
	r.GET("/recipes", asUser(1, s.handleListRecipes))

	w := doJSON(r, http.MethodGet, "/recipes?tags=1,2&ingredients=3", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(captured.TagIDs) != 2 || captured.TagIDs[0] != 1 || captured.TagIDs[1] != 2 {
		t.Fatalf("unexpected tag filter: %v", captured.TagIDs)
	}
	if len(captured.IngredientIDs) != 1 || captured.IngredientIDs[0] != 3 {
		t.Fatalf("unexpected ingredient filter: %v", captured.IngredientIDs)
	}
}

func TestListRecipes_BadFilter(t *testing.T) {
	recipes := &mockRecipeStore{
		listFunc: func(ctx context.Context, ownerID uint, filter store.RecipeFilter) ([]model.Recipe, error) {
			t.Fatal("store must not be called for a bad filter")
			return nil, nil
		},
	}
	s, r := newTestServer(recipes, nil, nil)
	r.GET("/recipes", asUser(1, s.handleListRecipes))

	w := doJSON(r, http.MethodGet, "/recipes?tags=abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetRecipe_NotFound(t *testing.T) {
	recipes := &mockRecipeStore{
		getFunc: func(ctx context.Context, ownerID, id uint) (*model.Recipe, error) {
			return nil, store.ErrNotFound
		},
	}
	s, r := newTestServer(recipes, nil, nil)
	r.GET("/recipes/:id", asUser(1, s.handleGetRecipe))

	w := doJSON(r, http.MethodGet, "/recipes/99", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestCreateRecipe_WithNestedTags(t *testing.T) {
	recipes := &mockRecipeStore{
		createFunc: func(ctx context.Context, ownerID uint, p store.CreateRecipeParams) (*model.Recipe, error) {
			if ownerID != 5 {
				t.Errorf("expected owner 5, got %d", ownerID)
			}
			if len(p.Tags) != 2 || p.Tags[0].Name != "breakfast" {
				t.Errorf("unexpected tags: %v", p.Tags)
			}
			return &model.Recipe{
				ID:          1,
				Title:       p.Title,
				TimeMinutes: p.TimeMinutes,
				Price:       p.Price,
				Tags: []model.Tag{
					{ID: 1, Name: "breakfast"},
					{ID: 2, Name: "quick"},
				},
			}, nil
		},
	}
	s, r := newTestServer(recipes, nil, nil)
	r.POST("/recipes", asUser(5, s.handleCreateRecipe))

	payload := []byte(`{
		"title": "Pancakes",
		"time_minutes": 10,
		"price": "3.50",
		"tags": [{"name": "breakfast"}, {"name": "quick"}]
	}`)
	w := doJSON(r, http.MethodPost, "/recipes", payload)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if recipes.createCalls != 1 {
		t.Fatalf("expected create to be called once")
	}

	var resp recipeDetailResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp.Tags) != 2 {
		t.Fatalf("expected 2 tags in the response, got %+v", resp.Tags)
	}
}

func TestCreateRecipe_MissingTitle(t *testing.T) {
	recipes := &mockRecipeStore{
		createFunc: func(ctx context.Context, ownerID uint, p store.CreateRecipeParams) (*model.Recipe, error) {
			t.Fatal("store must not be called for an invalid payload")
			return nil, nil
		},
	}
	s, r := newTestServer(recipes, nil, nil)
	r.POST("/recipes", asUser(1, s.handleCreateRecipe))

	w := doJSON(r, http.MethodPost, "/recipes", []byte(`{"time_minutes": 10, "price": "3.50"}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestPartialUpdateRecipe_OmittedTagsKeepAssociations(t *testing.T) {
	recipes := &mockRecipeStore{
		updateFunc: func(ctx context.Context, ownerID, id uint, p store.UpdateRecipeParams) (*model.Recipe, error) {
			if p.Tags != nil {
				t.Errorf("tags must stay nil when omitted from the payload")
			}
			if p.Title == nil || *p.Title != "New Title" {
				t.Errorf("expected title update, got %+v", p.Title)
			}
			return &model.Recipe{ID: id, Title: *p.Title, Price: decimal.Zero}, nil
		},
	}
	s, r := newTestServer(recipes, nil, nil)
	r.PATCH("/recipes/:id", asUser(1, s.handlePartialUpdateRecipe))

	w := doJSON(r, http.MethodPatch, "/recipes/1", []byte(`{"title": "New Title"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPartialUpdateRecipe_EmptyTagsClearAssociations(t *testing.T) {
	recipes := &mockRecipeStore{
		updateFunc: func(ctx context.Context, ownerID, id uint, p store.UpdateRecipeParams) (*model.Recipe, error) {
			if p.Tags == nil {
				t.Fatal("expected tags to be present")
			}
			if len(*p.Tags) != 0 {
				t.Errorf("expected empty tag list, got %v", *p.Tags)
			}
			return &model.Recipe{ID: id, Title: "Pancakes", Price: decimal.Zero}, nil
		},
	}
	s, r := newTestServer(recipes, nil, nil)
	r.PATCH("/recipes/:id", asUser(1, s.handlePartialUpdateRecipe))

	w := doJSON(r, http.MethodPatch, "/recipes/1", []byte(`{"tags": []}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPartialUpdateRecipe_UserFieldIgnored(t *testing.T) {
	recipes := &mockRecipeStore{
		updateFunc: func(ctx context.Context, ownerID, id uint, p store.UpdateRecipeParams) (*model.Recipe, error) {
			if ownerID != 1 {
				t.Errorf("owner must stay 1, got %d", ownerID)
			}
			return &model.Recipe{ID: id, Title: "Pancakes", Price: decimal.Zero}, nil
		},
	}
	s, r := newTestServer(recipes, nil, nil)
	r.PATCH("/recipes/:id", asUser(1, s.handlePartialUpdateRecipe))

	// 负载中的 user 字段没有绑定目标，更新不会改变归属
	w := doJSON(r, http.MethodPatch, "/recipes/1", []byte(`{"title": "Pancakes", "user": 999}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if recipes.updateCalls != 1 {
		t.Fatalf("expected update to be called once")
	}
}

func TestFullUpdateRecipe_MissingRequiredFields(t *testing.T) {
	recipes := &mockRecipeStore{
		updateFunc: func(ctx context.Context, ownerID, id uint, p store.UpdateRecipeParams) (*model.Recipe, error) {
			t.Fatal("store must not be called when required fields are missing")
			return nil, nil
		},
	}
	s, r := newTestServer(recipes, nil, nil)
	r.PUT("/recipes/:id", asUser(1, s.handleFullUpdateRecipe))

	w := doJSON(r, http.MethodPut, "/recipes/1", []byte(`{"title": "Pancakes"}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	var resp struct {
		Errors map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	for _, field := range []string{"time_minutes", "price"} {
		if resp.Errors[field] == "" {
			t.Errorf("expected error on field %q, got %v", field, resp.Errors)
		}
	}
}

func TestFullUpdateRecipe_ResetsOptionalScalars(t *testing.T) {
	recipes := &mockRecipeStore{
		updateFunc: func(ctx context.Context, ownerID, id uint, p store.UpdateRecipeParams) (*model.Recipe, error) {
			if p.Description == nil || *p.Description != "" {
				t.Errorf("expected description reset to empty, got %v", p.Description)
			}
			if p.Link == nil || *p.Link != "" {
				t.Errorf("expected link reset to empty, got %v", p.Link)
			}
			return &model.Recipe{ID: id, Title: *p.Title, Price: *p.Price}, nil
		},
	}
	s, r := newTestServer(recipes, nil, nil)
	r.PUT("/recipes/:id", asUser(1, s.handleFullUpdateRecipe))

	w := doJSON(r, http.MethodPut, "/recipes/1", []byte(`{"title": "Pancakes", "time_minutes": 10, "price": "3.50"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDeleteRecipe_Normal(t *testing.T) {
	recipes := &mockRecipeStore{
		deleteFunc: func(ctx context.Context, ownerID, id uint) error {
			if ownerID != 1 || id != 5 {
				t.Errorf("unexpected delete args: owner=%d id=%d", ownerID, id)
			}
			return nil
		},
	}
	s, r := newTestServer(recipes, nil, nil)
	r.DELETE("/recipes/:id", asUser(1, s.handleDeleteRecipe))

	w := doJSON(r, http.MethodDelete, "/recipes/5", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
}

func TestDeleteRecipe_NotOwned(t *testing.T) {
	recipes := &mockRecipeStore{
		deleteFunc: func(ctx context.Context, ownerID, id uint) error {
			return store.ErrNotFound
		},
	}
	s, r := newTestServer(recipes, nil, nil)
	r.DELETE("/recipes/:id", asUser(1, s.handleDeleteRecipe))

	w := doJSON(r, http.MethodDelete, "/recipes/5", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestParseIDList(t *testing.T) {
	ids, err := parseIDList("1,2,3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 3 || ids[2] != 3 {
		t.Fatalf("unexpected ids: %v", ids)
	}

	ids, err = parseIDList("")
	if err != nil || ids != nil {
		t.Fatalf("empty input must yield nil, got %v, %v", ids, err)
	}

	if _, err := parseIDList("1,x"); err == nil {
		t.Fatalf("expected error for non-numeric segment")
	}
}
