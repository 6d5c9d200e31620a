package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type labelRequest struct {
	Name string `json:"name" binding:"required"`
}

// assignedOnlyFlag 解析 assigned_only 查询参数（"1" 或 "true" 视为开启）。
func assignedOnlyFlag(c *gin.Context) bool {
	v := c.Query("assigned_only")
	return v == "1" || v == "true"
}

// handleListTags 返回当前用户的标签，按名称倒序。
//
// GET /tags?assigned_only=1
func (s *Server) handleListTags(c *gin.Context) {
	tags, err := s.tags.List(c.Request.Context(), getUserID(c), assignedOnlyFlag(c))
	if err != nil {
		s.respondStoreError(c, err, "list tags failed")
		return
	}
	c.JSON(http.StatusOK, tagResponses(tags))
}

// handleCreateTag 创建标签。
//
// POST /tags
func (s *Server) handleCreateTag(c *gin.Context) {
	var req labelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tag, err := s.tags.Create(c.Request.Context(), getUserID(c), req.Name)
	if err != nil {
		s.respondStoreError(c, err, "create tag failed")
		return
	}
	c.JSON(http.StatusCreated, labelResponse{ID: tag.ID, Name: tag.Name})
}

// handleUpdateTag 重命名标签。
//
// PATCH /tags/:id
func (s *Server) handleUpdateTag(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tag id"})
		return
	}
	var req labelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tag, err := s.tags.Update(c.Request.Context(), getUserID(c), id, req.Name)
	if err != nil {
		s.respondStoreError(c, err, "update tag failed")
		return
	}
	c.JSON(http.StatusOK, labelResponse{ID: tag.ID, Name: tag.Name})
}

// handleDeleteTag 删除标签。
//
// DELETE /tags/:id
func (s *Server) handleDeleteTag(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tag id"})
		return
	}

	if err := s.tags.Delete(c.Request.Context(), getUserID(c), id); err != nil {
		s.respondStoreError(c, err, "delete tag failed")
		return
	}
	c.Status(http.StatusNoContent)
}
