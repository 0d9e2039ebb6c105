package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	boarddomain "github.com/opencrmhq/opencrm/internal/board/domain"
)

func (s *Server) ListBoards(c *gin.Context) {
	orgID, ok := s.currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrMissingOrg)
		return
	}
	boards, err := s.boardSvc.ListBoards(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": boards})
}

func (s *Server) GetBoard(c *gin.Context) {
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
	found, err := s.boardSvc.GetBoard(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

func (s *Server) CreateBoard(c *gin.Context) {
	orgID, ok := s.currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrMissingOrg)
		return
	}
	var req boarddomain.CreateBoardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	created, err := s.boardSvc.CreateBoard(c.Request.Context(), orgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) DeleteBoard(c *gin.Context) {
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
	if err := s.boardSvc.DeleteBoard(c.Request.Context(), orgID, id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type addBoardMemberRequest struct {
	ProfileID string `json:"profile_id"`
}

func (s *Server) AddBoardMember(c *gin.Context) {
	orgID, ok := s.currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrMissingOrg)
		return
	}
	boardID, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req addBoardMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	profileID, err := parseSnowflake(req.ProfileID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	member, err := s.boardSvc.AddMember(c.Request.Context(), orgID, boardID, profileID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, member)
}

func (s *Server) RemoveBoardMember(c *gin.Context) {
	orgID, ok := s.currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrMissingOrg)
		return
	}
	boardID, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	profileID, err := parsePathID(c, "profileId")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.boardSvc.RemoveMember(c.Request.Context(), orgID, boardID, profileID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (s *Server) ListBoardTasks(c *gin.Context) {
	orgID, ok := s.currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrMissingOrg)
		return
	}
	boardID, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	tasks, err := s.boardSvc.ListTasks(c.Request.Context(), orgID, boardID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": tasks})
}

func (s *Server) CreateBoardTask(c *gin.Context) {
	orgID, ok := s.currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrMissingOrg)
		return
	}
	boardID, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req boarddomain.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	created, err := s.boardSvc.CreateTask(c.Request.Context(), orgID, boardID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) MoveBoardTask(c *gin.Context) {
	orgID, ok := s.currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrMissingOrg)
		return
	}
	boardID, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	taskID, err := parsePathID(c, "taskId")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req boarddomain.MoveTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	moved, err := s.boardSvc.MoveTask(c.Request.Context(), orgID, boardID, taskID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, moved)
}

func (s *Server) DeleteBoardTask(c *gin.Context) {
	orgID, ok := s.currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrMissingOrg)
		return
	}
	boardID, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	taskID, err := parsePathID(c, "taskId")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.boardSvc.DeleteTask(c.Request.Context(), orgID, boardID, taskID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
