package controllers

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/high001/webpanel/internal/middleware"
	"github.com/high001/webpanel/internal/models"
	"github.com/high001/webpanel/internal/services"
)

type FileController struct {
	files    *services.FileService
	security *middleware.SecurityLogger
}

func NewFileController(files *services.FileService, security *middleware.SecurityLogger) *FileController {
	return &FileController{files: files, security: security}
}

// ListFiles lists a directory. The listed path may differ from the requested
// one; current_path in the response is authoritative.
func (fc *FileController) ListFiles(c *gin.Context) {
	listing, err := fc.files.List(c.DefaultQuery("path", "/"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// DownloadFile streams a file as an attachment
func (fc *FileController) DownloadFile(c *gin.Context) {
	f, info, err := fc.files.Open(c.Query("path"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": info.Name()})
	c.DataFromReader(http.StatusOK, info.Size(), "application/octet-stream", f, map[string]string{
		"Content-Disposition": disposition,
	})
}

// UploadFile stores a multipart "file" into the "path" form directory
func (fc *FileController) UploadFile(c *gin.Context) {
	if limit := fc.files.MaxUploadBytes(); limit > 0 {
		// multipart framing needs a little headroom over the file itself
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+1<<20)
	}

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, services.ErrFileTooLarge)
			return
		}
		badRequest(c, "No file provided")
		return
	}
	if header.Filename == "" {
		respondError(c, services.ErrNoFile)
		return
	}

	src, err := header.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer src.Close()

	dir := c.PostForm("path")
	fc.security.LogPrivileged(c.ClientIP(), middleware.Operator(c), "upload", filepath.Join(dir, header.Filename))
	target, err := fc.files.Save(dir, header.Filename, src)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Success: true, Message: fmt.Sprintf("File uploaded to %s", target)})
}
