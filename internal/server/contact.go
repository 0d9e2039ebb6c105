package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	contactdomain "github.com/opencrmhq/opencrm/internal/contact/domain"
)

func (s *Server) ListContacts(c *gin.Context) {
	orgID, ok := s.currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrMissingOrg)
		return
	}
	limit, offset := parsePagination(c)
	contacts, total, err := s.contactSvc.List(c.Request.Context(), orgID, contactdomain.ListQuery{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, listResponse(contacts, total))
}

func (s *Server) GetContact(c *gin.Context) {
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
	found, err := s.contactSvc.Get(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

func (s *Server) CreateContact(c *gin.Context) {
	orgID, ok := s.currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrMissingOrg)
		return
	}
	var req contactdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	created, err := s.contactSvc.Create(c.Request.Context(), orgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) UpdateContact(c *gin.Context) {
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
	var req contactdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	updated, err := s.contactSvc.Update(c.Request.Context(), orgID, id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) DeleteContact(c *gin.Context) {
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
	if err := s.contactSvc.Delete(c.Request.Context(), orgID, id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
