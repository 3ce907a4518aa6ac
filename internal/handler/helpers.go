package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/logsage/logsage/internal/pkg/errcode"
	appErr "github.com/logsage/logsage/internal/pkg/errors"
	"github.com/logsage/logsage/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))
	switch {
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, appErr.ErrInvalidFile):
		response.Error(c, errcode.ErrInvalidFile, "unsupported or invalid file")
	case errors.Is(err, appErr.ErrFileTooLarge):
		response.Error(c, errcode.ErrFileTooLarge, "file too large")
	case errors.Is(err, appErr.ErrNotIndexed):
		response.Error(c, errcode.ErrNotIndexed, "file is not indexed")
	case errors.Is(err, appErr.ErrIndexCorruption):
		response.Error(c, errcode.ErrIndexCorruption, "vector index corrupted")
	case errors.Is(err, appErr.ErrEmbedProvider):
		response.Error(c, errcode.ErrEmbedProvider, "embedding provider failed")
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, errcode.ErrConflict, "conflict")
	case errors.Is(err, appErr.ErrTooMany):
		response.Error(c, errcode.ErrTooMany, "too many requests")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}

func fileID(c *gin.Context) string {
	return c.Param("id")
}
