package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleListIngredients 返回当前用户的食材，按名称倒序。
//
// GET /ingredients?assigned_only=1
func (s *Server) handleListIngredients(c *gin.Context) {
	ingredients, err := s.ingredients.List(c.Request.Context(), getUserID(c), assignedOnlyFlag(c))
	if err != nil {
		s.respondStoreError(c, err, "list ingredients failed")
		return
	}
	c.JSON(http.StatusOK, ingredientResponses(ingredients))
}

// handleCreateIngredient 创建食材。
//
// POST /ingredients
func (s *Server) handleCreateIngredient(c *gin.Context) {
	var req labelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ingredient, err := s.ingredients.Create(c.Request.Context(), getUserID(c), req.Name)
	if err != nil {
		s.respondStoreError(c, err, "create ingredient failed")
		return
	}
	c.JSON(http.StatusCreated, labelResponse{ID: ingredient.ID, Name: ingredient.Name})
}

// handleUpdateIngredient 重命名食材。
//
// PATCH /ingredients/:id
func (s *Server) handleUpdateIngredient(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ingredient id"})
		return
	}
	var req labelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ingredient, err := s.ingredients.Update(c.Request.Context(), getUserID(c), id, req.Name)
	if err != nil {
		s.respondStoreError(c, err, "update ingredient failed")
		return
	}
	c.JSON(http.StatusOK, labelResponse{ID: ingredient.ID, Name: ingredient.Name})
}

// handleDeleteIngredient 删除食材。
//
// DELETE /ingredients/:id
func (s *Server) handleDeleteIngredient(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ingredient id"})
		return
	}

	if err := s.ingredients.Delete(c.Request.Context(), getUserID(c), id); err != nil {
		s.respondStoreError(c, err, "delete ingredient failed")
		return
	}
	c.Status(http.StatusNoContent)
}
