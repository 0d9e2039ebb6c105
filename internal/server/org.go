package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	orgdomain "github.com/opencrmhq/opencrm/internal/organization/domain"
)

func (s *Server) CreateOrganization(c *gin.Context) {
	userID, ok := s.currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req orgdomain.CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	org, err := s.organizationSvc.Create(c.Request.Context(), userID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, org)
}

func (s *Server) GetCurrentOrganization(c *gin.Context) {
	orgID, ok := s.currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrMissingOrg)
		return
	}
	org, err := s.organizationSvc.GetByID(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, org)
}

func (s *Server) AddProfile(c *gin.Context) {
	orgID, ok := s.currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrMissingOrg)
		return
	}

	var req orgdomain.AddProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	profile, err := s.organizationSvc.AddProfile(c.Request.Context(), orgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, profile)
}

func (s *Server) DeactivateProfile(c *gin.Context) {
	orgID, ok := s.currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrMissingOrg)
		return
	}
	profileID, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.organizationSvc.DeactivateProfile(c.Request.Context(), orgID, profileID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}
