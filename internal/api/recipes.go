package api

import (
	"net/http"

	"recipebox/internal/model"
	"recipebox/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type labelResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// recipeResponse 列表项，不含描述。
type recipeResponse struct {
	ID          uint            `json:"id"`
	Title       string          `json:"title"`
	TimeMinutes int             `json:"time_minutes"`
	Price       decimal.Decimal `json:"price"`
	Link        string          `json:"link"`
	Tags        []labelResponse `json:"tags"`
	Ingredients []labelResponse `json:"ingredients"`
}

// recipeDetailResponse 详情，在列表项基础上增加描述和图片地址。
type recipeDetailResponse struct {
	recipeResponse
	Description string  `json:"description"`
	Image       *string `json:"image"`
}

type createRecipeRequest struct {
	Title       string           `json:"title" binding:"required"`
	Description string           `json:"description"`
	TimeMinutes *int             `json:"time_minutes" binding:"required"`
	Price       *decimal.Decimal `json:"price" binding:"required"`
	Link        string           `json:"link"`
	Tags        []store.LabelRef `json:"tags"`
	Ingredients []store.LabelRef `json:"ingredients"`
}

// updateRecipeRequest 更新负载。
//
// 所有字段都是指针：nil 表示负载里没有这个键。Tags / Ingredients 的
// *[] 形式让"缺失"和"空列表"在类型上可区分——前者保持关联不变，
// 后者清空全部关联。负载中的 user 字段没有对应项，会被静默忽略。
type updateRecipeRequest struct {
	Title       *string           `json:"title"`
	Description *string           `json:"description"`
	TimeMinutes *int              `json:"time_minutes"`
	Price       *decimal.Decimal  `json:"price"`
	Link        *string           `json:"link"`
	Tags        *[]store.LabelRef `json:"tags"`
	Ingredients *[]store.LabelRef `json:"ingredients"`
}

func tagResponses(tags []model.Tag) []labelResponse {
	out := make([]labelResponse, 0, len(tags))
	for _, t := range tags {
		out = append(out, labelResponse{ID: t.ID, Name: t.Name})
	}
	return out
}

func ingredientResponses(ingredients []model.Ingredient) []labelResponse {
	out := make([]labelResponse, 0, len(ingredients))
	for _, i := range ingredients {
		out = append(out, labelResponse{ID: i.ID, Name: i.Name})
	}
	return out
}

func newRecipeResponse(r *model.Recipe) recipeResponse {
	return recipeResponse{
		ID:          r.ID,
		Title:       r.Title,
		TimeMinutes: r.TimeMinutes,
		Price:       r.Price,
		Link:        r.Link,
		Tags:        tagResponses(r.Tags),
		Ingredients: ingredientResponses(r.Ingredients),
	}
}

func (s *Server) newRecipeDetailResponse(r *model.Recipe) recipeDetailResponse {
	resp := recipeDetailResponse{
		recipeResponse: newRecipeResponse(r),
		Description:    r.Description,
	}
	if r.Image != "" {
		url := s.imageURL(r.Image)
		resp.Image = &url
	}
	return resp
}

// handleListRecipes 返回当前用户的菜谱列表。
//
// GET /recipes?tags=1,2&ingredients=3
func (s *Server) handleListRecipes(c *gin.Context) {
	tagIDs, err := parseIDList(c.Query("tags"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tags filter"})
		return
	}
	ingredientIDs, err := parseIDList(c.Query("ingredients"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ingredients filter"})
		return
	}

	recipes, err := s.recipes.List(c.Request.Context(), getUserID(c), store.RecipeFilter{
		TagIDs:        tagIDs,
		IngredientIDs: ingredientIDs,
	})
	if err != nil {
		s.respondStoreError(c, err, "list recipes failed")
		return
	}

	resp := []recipeResponse{} // 保证空结果序列化为 [] 而不是 null
	for i := range recipes {
		resp = append(resp, newRecipeResponse(&recipes[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// handleGetRecipe 返回单条菜谱详情。
//
// GET /recipes/:id
func (s *Server) handleGetRecipe(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipe id"})
		return
	}

	recipe, err := s.recipes.Get(c.Request.Context(), getUserID(c), id)
	if err != nil {
		s.respondStoreError(c, err, "get recipe failed")
		return
	}
	c.JSON(http.StatusOK, s.newRecipeDetailResponse(recipe))
}

// handleCreateRecipe 创建菜谱，嵌套的标签/食材按名称解析或创建。
//
// POST /recipes
func (s *Server) handleCreateRecipe(c *gin.Context) {
	var req createRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	recipe, err := s.recipes.Create(c.Request.Context(), getUserID(c), store.CreateRecipeParams{
		Title:       req.Title,
		Description: req.Description,
		TimeMinutes: *req.TimeMinutes,
		Price:       *req.Price,
		Link:        req.Link,
		Tags:        req.Tags,
		Ingredients: req.Ingredients,
	})
	if err != nil {
		s.respondStoreError(c, err, "create recipe failed")
		return
	}
	c.JSON(http.StatusCreated, s.newRecipeDetailResponse(recipe))
}

// handleFullUpdateRecipe 全量更新：标量必填字段缺失报 400，可选标量
// 字段缺失重置为空；标签/食材仍按键是否出现决定替换或保持。
//
// PUT /recipes/:id
func (s *Server) handleFullUpdateRecipe(c *gin.Context) {
	var req updateRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fields := map[string]string{}
	if req.Title == nil {
		fields["title"] = "title is required"
	}
	if req.TimeMinutes == nil {
		fields["time_minutes"] = "time_minutes is required"
	}
	if req.Price == nil {
		fields["price"] = "price is required"
	}
	if len(fields) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"errors": fields})
		return
	}

	blank := ""
	if req.Description == nil {
		req.Description = &blank
	}
	if req.Link == nil {
		req.Link = &blank
	}

	s.updateRecipe(c, req)
}

// handlePartialUpdateRecipe 部分更新：缺失的字段保持不变。
//
// PATCH /recipes/:id
func (s *Server) handlePartialUpdateRecipe(c *gin.Context) {
	var req updateRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.updateRecipe(c, req)
}

func (s *Server) updateRecipe(c *gin.Context, req updateRecipeRequest) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipe id"})
		return
	}

	recipe, err := s.recipes.Update(c.Request.Context(), getUserID(c), id, store.UpdateRecipeParams{
		Title:       req.Title,
		Description: req.Description,
		TimeMinutes: req.TimeMinutes,
		Price:       req.Price,
		Link:        req.Link,
		Tags:        req.Tags,
		Ingredients: req.Ingredients,
	})
	if err != nil {
		s.respondStoreError(c, err, "update recipe failed")
		return
	}
	c.JSON(http.StatusOK, s.newRecipeDetailResponse(recipe))
}

// handleDeleteRecipe 删除菜谱。
//
// DELETE /recipes/:id
func (s *Server) handleDeleteRecipe(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipe id"})
		return
	}

	if err := s.recipes.Delete(c.Request.Context(), getUserID(c), id); err != nil {
		s.respondStoreError(c, err, "delete recipe failed")
		return
	}
	c.Status(http.StatusNoContent)
}
