package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/opencrmhq/opencrm/internal/account/domain"
)

func (s *Server) ListAccounts(c *gin.Context) {
	orgID, ok := s.currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrMissingOrg)
		return
	}
	limit, offset := parsePagination(c)
	accounts, total, err := s.accountSvc.List(c.Request.Context(), orgID, accountdomain.ListQuery{
		Status: c.Query("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, listResponse(accounts, total))
}

func (s *Server) GetAccount(c *gin.Context) {
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
	found, err := s.accountSvc.Get(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

func (s *Server) CreateAccount(c *gin.Context) {
	orgID, ok := s.currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrMissingOrg)
		return
	}
	var req accountdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	created, err := s.accountSvc.Create(c.Request.Context(), orgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) UpdateAccount(c *gin.Context) {
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
	var req accountdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	updated, err := s.accountSvc.Update(c.Request.Context(), orgID, id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) DeleteAccount(c *gin.Context) {
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
	if err := s.accountSvc.Delete(c.Request.Context(), orgID, id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
