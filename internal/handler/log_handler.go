package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/logsage/logsage/internal/pkg/response"
	"github.com/logsage/logsage/internal/service"
)

type LogHandler struct {
	files *service.FileService
}

func NewLogHandler(files *service.FileService) *LogHandler {
	return &LogHandler{files: files}
}

// Entries pages a file's parsed entries. Filters: quick (named range),
// start_ts/end_ts (epoch seconds), levels (comma separated).
func (h *LogHandler) Entries(c *gin.Context) {
	var levels []string
	if raw := c.Query("levels"); raw != "" {
		for _, lvl := range strings.Split(raw, ",") {
			lvl = strings.ToUpper(strings.TrimSpace(lvl))
			if lvl != "" {
				levels = append(levels, lvl)
			}
		}
	}
	entries, total, err := h.files.ListEntries(c.Request.Context(), fileID(c),
		c.Query("quick"),
		parseInt64(c.Query("start_ts"), 0),
		parseInt64(c.Query("end_ts"), 0),
		levels,
		parseUint(c.Query("offset"), 0),
		parseUint(c.Query("limit"), 100))
	if err != nil {
		handleError(c, err)
		return
	}
	response.List(c, entries, total)
}
