package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/opencrmhq/opencrm/internal/audit/domain"
)

func (s *Server) ListAuditLogs(c *gin.Context) {
	orgID, ok := s.currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrMissingOrg)
		return
	}

	filter := auditdomain.ListFilter{
		Action: strings.TrimSpace(c.Query("action")),
	}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			filter.Limit = parsed
		}
	}

	entries, err := s.auditSvc.List(c.Request.Context(), orgID, filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": entries})
}
