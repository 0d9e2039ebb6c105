package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	authdomain "github.com/opencrmhq/opencrm/internal/auth/domain"
	orgdomain "github.com/opencrmhq/opencrm/internal/organization/domain"
	"github.com/opencrmhq/opencrm/internal/ratelimit"
)

type signupRequest struct {
	Username         string `json:"username"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	OrganizationName string `json:"organization_name"`
}

func (s *Server) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	user, err := s.authsvc.CreateUser(c.Request.Context(), authdomain.CreateUserRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := gin.H{
		"user_id":  user.ID.String(),
		"username": user.Username,
		"email":    user.Email,
	}

	// An org name on signup bootstraps the first tenant with the
	// caller as its admin.
	if req.OrganizationName != "" {
		org, err := s.organizationSvc.Create(c.Request.Context(), user.ID, orgdomain.CreateOrganizationRequest{
			Name: req.OrganizationName,
		})
		if err != nil {
			AbortWithError(c, err)
			return
		}
		resp["org_id"] = org.ID.String()
	}

	c.JSON(http.StatusCreated, resp)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	// Both dimensions are checked before touching credentials: per
	// source address and per target account, so a botnet spraying one
	// account and one host hammering many accounts both hit a wall.
	if s.loginLimiter.Enabled() {
		if res := s.loginLimiter.AllowIP(c.Request.Context(), c.ClientIP()); !res.Allowed {
			s.rateLimitedResponse(c, res)
			return
		}
		if res := s.loginLimiter.AllowAccount(c.Request.Context(), req.Email); !res.Allowed {
			s.rateLimitedResponse(c, res)
			return
		}
	}

	result, err := s.authsvc.Login(c.Request.Context(), authdomain.LoginRequest{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		if s.metrics != nil && errors.Is(err, authdomain.ErrInvalidCredentials) {
			s.metrics.RecordLoginAttempt("failure")
		}
		AbortWithError(c, err)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordLoginAttempt("success")
	}

	s.rememberSessionOrgs(c, result)

	s.sessions.Set(c, result.RawToken, result.ExpiresAt)
	c.JSON(http.StatusOK, gin.H{
		"session":    result.Session,
		"expires_at": result.ExpiresAt,
	})
}

// rememberSessionOrgs caches the caller's memberships on the session
// row so org switching does not need a membership scan every time.
func (s *Server) rememberSessionOrgs(c *gin.Context, result *authdomain.LoginResult) {
	userID, ok := sessionUserID(result)
	if !ok {
		return
	}
	orgs, err := s.organizationSvc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		return
	}
	orgIDs := make([]int64, 0, len(orgs))
	var activeOrgID *int64
	for _, org := range orgs {
		if !org.IsActive {
			continue
		}
		id := int64(org.ID)
		orgIDs = append(orgIDs, id)
		if activeOrgID == nil {
			activeOrgID = &id
		}
	}
	if s.cfg.DefaultOrgID != 0 {
		for _, id := range orgIDs {
			if id == s.cfg.DefaultOrgID {
				def := s.cfg.DefaultOrgID
				activeOrgID = &def
				break
			}
		}
	}
	_ = s.authsvc.UpdateSessionOrgContext(c.Request.Context(), result.SessionID, activeOrgID, orgIDs)
}

func sessionUserID(result *authdomain.LoginResult) (snowflake.ID, bool) {
	if result == nil || result.Session == nil {
		return 0, false
	}
	raw, ok := result.Session.Metadata["user_id"].(string)
	if !ok {
		return 0, false
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func (s *Server) rateLimitedResponse(c *gin.Context, res *ratelimit.RateLimitResult) {
	c.Header("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
	c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	AbortWithError(c, ErrRateLimited)
}

func (s *Server) Logout(c *gin.Context) {
	if token, ok := s.sessions.ReadToken(c); ok {
		_ = s.authsvc.Logout(c.Request.Context(), token)
	}
	s.sessions.Clear(c)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Me(c *gin.Context) {
	userID, ok := s.currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	user, err := s.authsvc.GetUser(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":    user.ID.String(),
		"username":   user.Username,
		"email":      user.Email,
		"is_default": user.IsDefault,
	})
}

type changePasswordRequest struct {
	NewPassword string `json:"new_password"`
}

func (s *Server) ChangePassword(c *gin.Context) {
	userID, ok := s.currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.authsvc.ChangePassword(c.Request.Context(), userID, req.NewPassword); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ListUserOrgs(c *gin.Context) {
	userID, ok := s.currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	orgs, err := s.organizationSvc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"organizations": orgs})
}

// UseOrg revalidates the membership and records the selected org on
// the session. The org header still decides the tenant scope on every
// API request; this only changes the client's default.
func (s *Server) UseOrg(c *gin.Context) {
	userID, ok := s.currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	orgID, err := snowflake.ParseString(c.Param("orgId"))
	if err != nil || orgID == 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if _, err := s.organizationSvc.ActiveProfile(c.Request.Context(), orgID, userID); err != nil {
		AbortWithError(c, err)
		return
	}

	if sessionID, ok := s.currentSessionID(c); ok {
		orgs, err := s.organizationSvc.ListByUser(c.Request.Context(), userID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		orgIDs := make([]int64, 0, len(orgs))
		for _, org := range orgs {
			if org.IsActive {
				orgIDs = append(orgIDs, int64(org.ID))
			}
		}
		active := int64(orgID)
		if err := s.authsvc.UpdateSessionOrgContext(c.Request.Context(), sessionID, &active, orgIDs); err != nil {
			AbortWithError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"active_org_id": fmt.Sprint(orgID)})
}
