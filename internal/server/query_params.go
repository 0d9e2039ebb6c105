package server

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

const maxPageSize = 200

func parsePathID(c *gin.Context, name string) (snowflake.ID, error) {
	return parseSnowflake(c.Param(name))
}

func parseSnowflake(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, ErrInvalidRequest
	}
	return id, nil
}

// parsePagination reads limit/offset query parameters. Zero limit
// defers to the service default; oversized limits are clamped.
func parsePagination(c *gin.Context) (limit, offset int) {
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if raw := strings.TrimSpace(c.Query("offset")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			offset = parsed
		}
	}
	return limit, offset
}

func listResponse(items any, total int64) gin.H {
	return gin.H{"items": items, "total": total}
}
