package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/logsage/logsage/internal/filestore"
	"github.com/logsage/logsage/internal/pkg/errcode"
	appErr "github.com/logsage/logsage/internal/pkg/errors"
	"github.com/logsage/logsage/internal/pkg/response"
	"github.com/logsage/logsage/internal/service"
)

type FileHandler struct {
	files   *service.FileService
	indexer *service.IndexService
	maxSize int64
}

func NewFileHandler(files *service.FileService, indexer *service.IndexService, maxSize int64) *FileHandler {
	return &FileHandler{files: files, indexer: indexer, maxSize: maxSize}
}

func (h *FileHandler) Upload(c *gin.Context) {
	if h.maxSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize+4096)
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	if h.maxSize > 0 && file.Size > h.maxSize {
		handleError(c, appErr.ErrFileTooLarge)
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()
	reader, ok := interface{}(opened).(filestore.ReadSeekCloser)
	if !ok {
		response.Error(c, errcode.ErrInvalidFile, "failed to read file")
		return
	}
	result, err := h.files.Upload(c.Request.Context(), file.Filename, file.Size,
		file.Header.Get("Content-Type"), reader)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *FileHandler) Get(c *gin.Context) {
	file, err := h.files.Get(c.Request.Context(), fileID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, file)
}

func (h *FileHandler) List(c *gin.Context) {
	offset := parseUint(c.Query("offset"), 0)
	limit := parseUint(c.Query("limit"), 50)
	files, total, err := h.files.List(c.Request.Context(), offset, limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.List(c, files, total)
}

func (h *FileHandler) Delete(c *gin.Context) {
	if err := h.files.Delete(c.Request.Context(), fileID(c)); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

type indexRequest struct {
	ChunkSize int  `json:"chunk_size"`
	Overlap   *int `json:"overlap"`
}

func (h *FileHandler) Index(c *gin.Context) {
	var req indexRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, errcode.ErrInvalid, "invalid request body")
			return
		}
	}
	overlap := -1
	if req.Overlap != nil {
		overlap = *req.Overlap
	}
	file, err := h.indexer.Index(c.Request.Context(), fileID(c), req.ChunkSize, overlap)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, file)
}

func parseUint(value string, fallback uint) uint {
	if value == "" {
		return fallback
	}
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return fallback
	}
	return uint(n)
}

func parseInt64(value string, fallback int64) int64 {
	if value == "" {
		return fallback
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
