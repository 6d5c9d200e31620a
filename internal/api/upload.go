package api

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"recipebox/internal/pkg/metrics"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// allowedImageMimeTypes 上传接受的图片类型，按实际内容嗅探判定，
// 不信任文件名或客户端声明的 Content-Type。
var allowedImageMimeTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

// handleUploadImage 为菜谱上传图片。
//
// POST /recipes/:id/upload-image
//
// 文件以随机标识 + 原始扩展名存储在上传目录下；旧图片文件保留。
// 写入中断时数据库不更新，之前的图片（如有）继续生效。
func (s *Server) handleUploadImage(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipe id"})
		return
	}
	userID := getUserID(c)

	// 先确认归属，避免为 404 的请求写文件
	if _, err := s.recipes.Get(c.Request.Context(), userID, id); err != nil {
		s.respondStoreError(c, err, "get recipe failed")
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"image": "image file is required"}})
		return
	}
	defer file.Close()

	if s.cfg.Upload.MaxUploadBytes > 0 && header.Size > s.cfg.Upload.MaxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"image": "image file is too large"}})
		return
	}

	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"image": "error reading image file"}})
		return
	}
	mtype := mimetype.Detect(buf[:n])
	if _, ok := allowedImageMimeTypes[mtype.String()]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"image": "upload a valid image"}})
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error reading image file"})
		return
	}

	filename := imageFilename(header.Filename, mtype.Extension())
	dir := filepath.Join(s.cfg.Upload.Dir, "recipes")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error creating upload directory"})
		return
	}

	dstPath := filepath.Join(dir, filename)
	dst, err := os.Create(dstPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error storing image"})
		return
	}
	written, err := io.Copy(dst, file)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dstPath)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error storing image"})
		return
	}

	recipe, err := s.recipes.SetImage(c.Request.Context(), userID, id, filename)
	if err != nil {
		_ = os.Remove(dstPath)
		s.respondStoreError(c, err, "set recipe image failed")
		return
	}

	metrics.ImageUploadsTotal.Inc()
	metrics.ImageUploadBytes.Add(float64(written))
	if s.logger != nil {
		s.logger.Info("recipe image uploaded",
			slog.Uint64("recipe_id", uint64(recipe.ID)),
			slog.String("file", filename),
			slog.Int64("bytes", written),
		)
	}

	c.JSON(http.StatusOK, gin.H{"id": recipe.ID, "image": s.imageURL(recipe.Image)})
}

// imageFilename 生成存储文件名：随机 UUID 加原始扩展名。
// 原始文件名没有扩展名时退回到按内容嗅探出的扩展名。
func imageFilename(original, sniffedExt string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if ext == "" {
		ext = sniffedExt
	}
	return uuid.NewString() + ext
}

// imageURL 返回图片的对外访问路径。
func (s *Server) imageURL(filename string) string {
	return "/media/recipes/" + filename
}
