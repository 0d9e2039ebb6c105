package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	casedomain "github.com/opencrmhq/opencrm/internal/caserecord/domain"
)

func (s *Server) ListCases(c *gin.Context) {
	orgID, ok := s.currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrMissingOrg)
		return
	}
	limit, offset := parsePagination(c)
	cases, total, err := s.caseSvc.List(c.Request.Context(), orgID, casedomain.ListQuery{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, listResponse(cases, total))
}

func (s *Server) GetCase(c *gin.Context) {
	orgID, ok := s.currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrMissingOrg)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	found, err := s.caseSvc.Get(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

func (s *Server) CreateCase(c *gin.Context) {
	orgID, ok := s.currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrMissingOrg)
		return
	}
	var req casedomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	created, err := s.caseSvc.Create(c.Request.Context(), orgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) UpdateCase(c *gin.Context) {
	orgID, ok := s.currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrMissingOrg)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req casedomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	updated, err := s.caseSvc.Update(c.Request.Context(), orgID, id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) DeleteCase(c *gin.Context) {
	orgID, ok := s.currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrMissingOrg)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.caseSvc.Delete(c.Request.Context(), orgID, id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
