package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	"github.com/opencrmhq/opencrm/internal/authorization"
	"github.com/opencrmhq/opencrm/internal/board/domain"
	"github.com/opencrmhq/opencrm/internal/config"
	"github.com/opencrmhq/opencrm/internal/orgcontext"
	"github.com/opencrmhq/opencrm/pkg/db/option"
	"github.com/opencrmhq/opencrm/pkg/repository"
	"github.com/opencrmhq/opencrm/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	GenID     *snowflake.Node
	Boards    repository.Repository[domain.Board]
	Columns   repository.Repository[domain.Column]
	Tasks     repository.Repository[domain.Task]
	Members   repository.Repository[domain.Member]
	CRMConfig *config.CRMConfigHolder
	Telemetry *telemetry.Metrics `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	genID     *snowflake.Node
	boards    repository.Repository[domain.Board]
	columns   repository.Repository[domain.Column]
	tasks     repository.Repository[domain.Task]
	members   repository.Repository[domain.Member]
	crmConfig *config.CRMConfigHolder
	telemetry *telemetry.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:       p.Log.Named("board.service"),
		genID:     p.GenID,
		boards:    p.Boards,
		columns:   p.Columns,
		tasks:     p.Tasks,
		members:   p.Members,
		crmConfig: p.CRMConfig,
		telemetry: p.Telemetry,
	}
}

func (s *Service) ListBoards(ctx context.Context, orgID snowflake.ID) ([]*domain.Board, error) {
	return s.boards.Find(ctx, &domain.Board{},
		option.WithOrgID(orgID),
		option.WithOrder("created_at DESC"),
	)
}

func (s *Service) GetBoard(ctx context.Context, orgID, boardID snowflake.ID) (*domain.Board, error) {
	board, err := s.boards.FindOne(ctx, &domain.Board{ID: boardID},
		option.WithOrgID(orgID),
		option.WithPreload("Columns", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }),
		option.WithPreload("Members"),
	)
	if err != nil {
		return nil, err
	}
	if board == nil {
		return nil, domain.ErrNotFound
	}
	if err := s.requireMember(ctx, orgID, board); err != nil {
		return nil, err
	}
	return board, nil
}

func (s *Service) CreateBoard(ctx context.Context, orgID snowflake.ID, req domain.CreateBoardRequest) (*domain.Board, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	profile, ok := orgcontext.ProfileFromContext(ctx)
	if !ok {
		return nil, authorization.ErrForbidden
	}

	now := time.Now().UTC()
	board := &domain.Board{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		CreatedBy:   profile.ID,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.boards.Create(ctx, board); err != nil {
		return nil, err
	}

	columnNames := s.crmConfig.Get().BoardColumns
	columns := make([]*domain.Column, 0, len(columnNames))
	for i, columnName := range columnNames {
		columns = append(columns, &domain.Column{
			ID:        s.genID.Generate(),
			OrgID:     orgID,
			BoardID:   board.ID,
			Name:      columnName,
			Position:  i,
			CreatedAt: now,
		})
	}
	if err := s.columns.BatchCreate(ctx, columns); err != nil {
		return nil, err
	}

	owner := &domain.Member{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		BoardID:   board.ID,
		ProfileID: profile.ID,
		Role:      domain.MemberRoleOwner,
		CreatedAt: now,
	}
	if err := s.members.Create(ctx, owner); err != nil {
		return nil, err
	}

	s.telemetry.RecordCreated("board")
	return s.GetBoard(ctx, orgID, board.ID)
}

func (s *Service) DeleteBoard(ctx context.Context, orgID, boardID snowflake.ID) error {
	board, err := s.GetBoard(ctx, orgID, boardID)
	if err != nil {
		return err
	}
	if err := s.requireManage(ctx, orgID, board); err != nil {
		return err
	}

	tasks, err := s.tasks.Find(ctx, &domain.Task{BoardID: boardID}, option.WithOrgID(orgID))
	if err != nil {
		return err
	}
	for _, task := range tasks {
		if err := s.tasks.Delete(ctx, task.ID); err != nil {
			return err
		}
	}
	for _, column := range board.Columns {
		if err := s.columns.Delete(ctx, column.ID); err != nil {
			return err
		}
	}
	for _, member := range board.Members {
		if err := s.members.Delete(ctx, member.ID); err != nil {
			return err
		}
	}
	return s.boards.Delete(ctx, boardID)
}

func (s *Service) AddMember(ctx context.Context, orgID, boardID, profileID snowflake.ID) (*domain.Member, error) {
	board, err := s.GetBoard(ctx, orgID, boardID)
	if err != nil {
		return nil, err
	}
	if err := s.requireManage(ctx, orgID, board); err != nil {
		return nil, err
	}

	for _, member := range board.Members {
		if member.ProfileID == profileID {
			return nil, domain.ErrDuplicateMember
		}
	}

	member := &domain.Member{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		BoardID:   boardID,
		ProfileID: profileID,
		Role:      domain.MemberRoleMember,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.members.Create(ctx, member); err != nil {
		return nil, err
	}
	return member, nil
}

func (s *Service) RemoveMember(ctx context.Context, orgID, boardID, profileID snowflake.ID) error {
	board, err := s.GetBoard(ctx, orgID, boardID)
	if err != nil {
		return err
	}
	if err := s.requireManage(ctx, orgID, board); err != nil {
		return err
	}

	for _, member := range board.Members {
		if member.ProfileID == profileID {
			return s.members.Delete(ctx, member.ID)
		}
	}
	return domain.ErrNotMember
}

func (s *Service) ListTasks(ctx context.Context, orgID, boardID snowflake.ID) ([]*domain.Task, error) {
	if _, err := s.GetBoard(ctx, orgID, boardID); err != nil {
		return nil, err
	}
	return s.tasks.Find(ctx, &domain.Task{BoardID: boardID},
		option.WithOrgID(orgID),
		option.WithOrder("position ASC"),
	)
}

func (s *Service) CreateTask(ctx context.Context, orgID, boardID snowflake.ID, req domain.CreateTaskRequest) (*domain.Task, error) {
	board, err := s.GetBoard(ctx, orgID, boardID)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, domain.ErrInvalidName
	}
	if !columnOnBoard(board, req.ColumnID) {
		return nil, domain.ErrColumnNotFound
	}

	var createdBy snowflake.ID
	if profile, ok := orgcontext.ProfileFromContext(ctx); ok {
		createdBy = profile.ID
	}

	count, err := s.tasks.Count(ctx, &domain.Task{BoardID: boardID, ColumnID: req.ColumnID}, option.WithOrgID(orgID))
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	task := &domain.Task{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		BoardID:     boardID,
		ColumnID:    req.ColumnID,
		CreatedBy:   createdBy,
		AssignedTo:  int64sOrEmpty(req.AssignedTo),
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Position:    int(count),
		DueDate:     req.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Service) MoveTask(ctx context.Context, orgID, boardID, taskID snowflake.ID, req domain.MoveTaskRequest) (*domain.Task, error) {
	board, err := s.GetBoard(ctx, orgID, boardID)
	if err != nil {
		return nil, err
	}
	if !columnOnBoard(board, req.ColumnID) {
		return nil, domain.ErrColumnNotFound
	}

	task, err := s.tasks.FindOne(ctx, &domain.Task{ID: taskID, BoardID: boardID}, option.WithOrgID(orgID))
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, domain.ErrTaskNotFound
	}

	position := req.Position
	if position < 0 {
		position = 0
	}
	fields := map[string]any{
		"column_id":  req.ColumnID,
		"position":   position,
		"updated_at": time.Now().UTC(),
	}
	if err := s.tasks.Update(ctx, taskID, fields); err != nil {
		return nil, err
	}
	return s.tasks.FindOne(ctx, &domain.Task{ID: taskID}, option.WithOrgID(orgID))
}

func (s *Service) DeleteTask(ctx context.Context, orgID, boardID, taskID snowflake.ID) error {
	if _, err := s.GetBoard(ctx, orgID, boardID); err != nil {
		return err
	}
	task, err := s.tasks.FindOne(ctx, &domain.Task{ID: taskID, BoardID: boardID}, option.WithOrgID(orgID))
	if err != nil {
		return err
	}
	if task == nil {
		return domain.ErrTaskNotFound
	}
	return s.tasks.Delete(ctx, taskID)
}

// requireMember grants org admins and enrolled members.
func (s *Service) requireMember(ctx context.Context, orgID snowflake.ID, board *domain.Board) error {
	profile, ok := orgcontext.ProfileFromContext(ctx)
	if !ok {
		return authorization.ErrForbidden
	}
	if authorization.IsOrgAdmin(profile, orgID) {
		return nil
	}
	for _, member := range board.Members {
		if member.ProfileID == profile.ID {
			return nil
		}
	}
	return domain.ErrNotMember
}

// requireManage grants org admins and the board owner.
func (s *Service) requireManage(ctx context.Context, orgID snowflake.ID, board *domain.Board) error {
	profile, ok := orgcontext.ProfileFromContext(ctx)
	if !ok {
		return authorization.ErrForbidden
	}
	if authorization.IsOrgAdmin(profile, orgID) {
		return nil
	}
	for _, member := range board.Members {
		if member.ProfileID == profile.ID && member.Role == domain.MemberRoleOwner {
			return nil
		}
	}
	return authorization.ErrForbidden
}

func columnOnBoard(board *domain.Board, columnID snowflake.ID) bool {
	for _, column := range board.Columns {
		if column.ID == columnID {
			return true
		}
	}
	return false
}

func int64sOrEmpty(vals []int64) pq.Int64Array {
	if vals == nil {
		return pq.Int64Array{}
	}
	return pq.Int64Array(vals)
}
