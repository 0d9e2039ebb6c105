package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opencrmhq/opencrm/pkg/rls"
)

// GetRLSStatus reports, per registry table, whether row-level security
// is enabled, forced and how many policies are attached. Runs on the
// shared handle, not the tenant-pinned one: the catalog queries need
// no org scope and must see every table.
func (s *Server) GetRLSStatus(c *gin.Context) {
	statuses, err := rls.Status(c.Request.Context(), s.db)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	protected := 0
	for _, status := range statuses {
		if status.Exists && status.RLSEnabled && status.RLSForced && status.Policies > 0 {
			protected++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"supported": s.guard.Supported(),
		"tables":    statuses,
		"protected": protected,
		"total":     len(statuses),
	})
}
