package handlers

import (
	"net/http"

	"jekyll-cms/pkg/services"

	"github.com/gin-gonic/gin"
)

func ListMedia(c *gin.Context) {
	files, err := services.ListMediaFiles(c.Query("dir"))
	if err != nil {
		respondError(c, err, "Failed to list media")
		return
	}
	c.JSON(http.StatusOK, files)
}

func UploadMedia(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	info, err := services.SaveMediaFile(file, c.PostForm("dir"))
	if err != nil {
		respondError(c, err, "Failed to save file")
		return
	}
	c.JSON(http.StatusOK, info)
}

func DeleteMedia(c *gin.Context) {
	var req struct {
		Path string `json:"path" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	if err := services.DeleteMediaFile(req.Path); err != nil {
		respondError(c, err, "Failed to delete")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func OrphanedMedia(c *gin.Context) {
	files, err := services.OrphanedAssets(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to scan media")
		return
	}
	c.JSON(http.StatusOK, files)
}

// ServeMediaRaw streams a file from one of the asset directories.
func ServeMediaRaw(c *gin.Context) {
	fullPath, err := services.MediaPath(c.Query("path"))
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	c.File(fullPath)
}
