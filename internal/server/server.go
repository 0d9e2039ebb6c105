package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/opencrmhq/opencrm/internal/access"
	"github.com/opencrmhq/opencrm/internal/account"
	accountdomain "github.com/opencrmhq/opencrm/internal/account/domain"
	"github.com/opencrmhq/opencrm/internal/audit"
	auditdomain "github.com/opencrmhq/opencrm/internal/audit/domain"
	"github.com/opencrmhq/opencrm/internal/auth"
	authdomain "github.com/opencrmhq/opencrm/internal/auth/domain"
	"github.com/opencrmhq/opencrm/internal/auth/session"
	"github.com/opencrmhq/opencrm/internal/authorization"
	"github.com/opencrmhq/opencrm/internal/board"
	boarddomain "github.com/opencrmhq/opencrm/internal/board/domain"
	"github.com/opencrmhq/opencrm/internal/caserecord"
	casedomain "github.com/opencrmhq/opencrm/internal/caserecord/domain"
	"github.com/opencrmhq/opencrm/internal/config"
	"github.com/opencrmhq/opencrm/internal/contact"
	contactdomain "github.com/opencrmhq/opencrm/internal/contact/domain"
	"github.com/opencrmhq/opencrm/internal/invoice"
	invoicedomain "github.com/opencrmhq/opencrm/internal/invoice/domain"
	"github.com/opencrmhq/opencrm/internal/lead"
	leaddomain "github.com/opencrmhq/opencrm/internal/lead/domain"
	"github.com/opencrmhq/opencrm/internal/observability"
	obsmiddleware "github.com/opencrmhq/opencrm/internal/observability/logger"
	obsmetrics "github.com/opencrmhq/opencrm/internal/observability/metrics"
	obstracing "github.com/opencrmhq/opencrm/internal/observability/tracing"
	"github.com/opencrmhq/opencrm/internal/opportunity"
	opportunitydomain "github.com/opencrmhq/opencrm/internal/opportunity/domain"
	"github.com/opencrmhq/opencrm/internal/order"
	orderdomain "github.com/opencrmhq/opencrm/internal/order/domain"
	"github.com/opencrmhq/opencrm/internal/organization"
	orgdomain "github.com/opencrmhq/opencrm/internal/organization/domain"
	"github.com/opencrmhq/opencrm/internal/providers/pdf"
	"github.com/opencrmhq/opencrm/internal/ratelimit"
	"github.com/opencrmhq/opencrm/internal/task"
	taskdomain "github.com/opencrmhq/opencrm/internal/task/domain"
	"github.com/opencrmhq/opencrm/internal/team"
	teamdomain "github.com/opencrmhq/opencrm/internal/team/domain"
	"github.com/opencrmhq/opencrm/pkg/rls"
	"github.com/opencrmhq/opencrm/pkg/telemetry"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(
		config.Load,
		config.NewCRMConfigHolder,
		telemetry.NewMetrics,
		rls.NewGuard,
		registerGin,
	),
	authorization.Module,
	audit.Module,
	auth.Module,
	session.Module,
	access.Module,
	organization.Module,
	team.Module,
	lead.Module,
	contact.Module,
	account.Module,
	opportunity.Module,
	caserecord.Module,
	task.Module,
	invoice.Module,
	order.Module,
	board.Module,
	pdf.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	db             *gorm.DB
	guard          *rls.Guard
	sessions       *session.Manager
	genID          *snowflake.Node
	authsvc        authdomain.Service
	authzSvc       authorization.Service
	auditSvc       auditdomain.Service
	organizationSvc orgdomain.Service
	leadSvc        leaddomain.Service
	contactSvc     contactdomain.Service
	accountSvc     accountdomain.Service
	opportunitySvc opportunitydomain.Service
	caseSvc        casedomain.Service
	taskSvc        taskdomain.Service
	teamSvc        teamdomain.Service
	invoiceSvc     invoicedomain.Service
	orderSvc       orderdomain.Service
	boardSvc       boarddomain.Service
	loginLimiter   *ratelimit.LoginLimiter
	metrics        *telemetry.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	Guard           *rls.Guard
	Sessions        *session.Manager
	GenID           *snowflake.Node
	Authsvc         authdomain.Service
	AuthzSvc        authorization.Service
	AuditSvc        auditdomain.Service
	OrganizationSvc orgdomain.Service
	LeadSvc         leaddomain.Service
	ContactSvc      contactdomain.Service
	AccountSvc      accountdomain.Service
	OpportunitySvc  opportunitydomain.Service
	CaseSvc         casedomain.Service
	TaskSvc         taskdomain.Service
	TeamSvc         teamdomain.Service
	InvoiceSvc      invoicedomain.Service
	OrderSvc        orderdomain.Service
	BoardSvc        boarddomain.Service
	LoginLimiter    *ratelimit.LoginLimiter `optional:"true"`
	Metrics         *telemetry.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		guard:           p.Guard,
		sessions:        p.Sessions,
		genID:           p.GenID,
		authsvc:         p.Authsvc,
		authzSvc:        p.AuthzSvc,
		auditSvc:        p.AuditSvc,
		organizationSvc: p.OrganizationSvc,
		leadSvc:         p.LeadSvc,
		contactSvc:      p.ContactSvc,
		accountSvc:      p.AccountSvc,
		opportunitySvc:  p.OpportunitySvc,
		caseSvc:         p.CaseSvc,
		taskSvc:         p.TaskSvc,
		teamSvc:         p.TeamSvc,
		invoiceSvc:      p.InvoiceSvc,
		orderSvc:        p.OrderSvc,
		boardSvc:        p.BoardSvc,
		loginLimiter:    p.LoginLimiter,
		metrics:         p.Metrics,
	}

	svc.registerAuthRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	authGroup := s.engine.Group("/auth")

	authGroup.POST("/signup", s.Signup)
	authGroup.POST("/login", s.Login)
	authGroup.POST("/logout", s.Logout)
	authGroup.GET("/me", s.AuthRequired(), s.Me)
	authGroup.POST("/change-password", s.AuthRequired(), s.ChangePassword)

	user := authGroup.Group("/user", s.AuthRequired())
	{
		user.GET("/orgs", s.ListUserOrgs)
		user.POST("/orgs", s.CreateOrganization)
		user.POST("/using/:orgId", s.UseOrg)
	}
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// Every route below runs inside a tenant scope: the session is
	// authenticated first, then the org header is resolved to an
	// active profile and the database connection is pinned with the
	// org context for the duration of the request.
	api.Use(s.AuthRequired())
	api.Use(s.OrgContext())

	api.GET("/org", s.GetCurrentOrganization)
	api.POST("/org/profiles", s.authorizeOrgAction(authorization.ObjectProfile, authorization.ActionProfileManage), s.AddProfile)
	api.DELETE("/org/profiles/:id", s.authorizeOrgAction(authorization.ObjectProfile, authorization.ActionProfileManage), s.DeactivateProfile)

	// -------- Leads --------
	leads := api.Group("/leads", s.RequireSalesAccess())
	leads.GET("", s.authorizeOrgAction(authorization.ObjectLead, authorization.ActionView), s.ListLeads)
	leads.POST("", s.authorizeOrgAction(authorization.ObjectLead, authorization.ActionCreate), s.CreateLead)
	leads.GET("/:id", s.authorizeOrgAction(authorization.ObjectLead, authorization.ActionView), s.GetLead)
	leads.PATCH("/:id", s.authorizeOrgAction(authorization.ObjectLead, authorization.ActionUpdate), s.UpdateLead)
	leads.DELETE("/:id", s.authorizeOrgAction(authorization.ObjectLead, authorization.ActionDelete), s.DeleteLead)
	leads.POST("/:id/convert", s.authorizeOrgAction(authorization.ObjectLead, authorization.ActionLeadConvert), s.ConvertLead)

	// -------- Contacts --------
	api.GET("/contacts", s.authorizeOrgAction(authorization.ObjectContact, authorization.ActionView), s.ListContacts)
	api.POST("/contacts", s.authorizeOrgAction(authorization.ObjectContact, authorization.ActionCreate), s.CreateContact)
	api.GET("/contacts/:id", s.authorizeOrgAction(authorization.ObjectContact, authorization.ActionView), s.GetContact)
	api.PATCH("/contacts/:id", s.authorizeOrgAction(authorization.ObjectContact, authorization.ActionUpdate), s.UpdateContact)
	api.DELETE("/contacts/:id", s.authorizeOrgAction(authorization.ObjectContact, authorization.ActionDelete), s.DeleteContact)

	// -------- Accounts --------
	api.GET("/accounts", s.authorizeOrgAction(authorization.ObjectAccount, authorization.ActionView), s.ListAccounts)
	api.POST("/accounts", s.authorizeOrgAction(authorization.ObjectAccount, authorization.ActionCreate), s.CreateAccount)
	api.GET("/accounts/:id", s.authorizeOrgAction(authorization.ObjectAccount, authorization.ActionView), s.GetAccount)
	api.PATCH("/accounts/:id", s.authorizeOrgAction(authorization.ObjectAccount, authorization.ActionUpdate), s.UpdateAccount)
	api.DELETE("/accounts/:id", s.authorizeOrgAction(authorization.ObjectAccount, authorization.ActionDelete), s.DeleteAccount)

	// -------- Opportunities --------
	opps := api.Group("/opportunities", s.RequireSalesAccess())
	opps.GET("", s.authorizeOrgAction(authorization.ObjectOpportunity, authorization.ActionView), s.ListOpportunities)
	opps.POST("", s.authorizeOrgAction(authorization.ObjectOpportunity, authorization.ActionCreate), s.CreateOpportunity)
	opps.GET("/:id", s.authorizeOrgAction(authorization.ObjectOpportunity, authorization.ActionView), s.GetOpportunity)
	opps.PATCH("/:id", s.authorizeOrgAction(authorization.ObjectOpportunity, authorization.ActionUpdate), s.UpdateOpportunity)
	opps.DELETE("/:id", s.authorizeOrgAction(authorization.ObjectOpportunity, authorization.ActionDelete), s.DeleteOpportunity)

	// -------- Cases --------
	api.GET("/cases", s.authorizeOrgAction(authorization.ObjectCase, authorization.ActionView), s.ListCases)
	api.POST("/cases", s.authorizeOrgAction(authorization.ObjectCase, authorization.ActionCreate), s.CreateCase)
	api.GET("/cases/:id", s.authorizeOrgAction(authorization.ObjectCase, authorization.ActionView), s.GetCase)
	api.PATCH("/cases/:id", s.authorizeOrgAction(authorization.ObjectCase, authorization.ActionUpdate), s.UpdateCase)
	api.DELETE("/cases/:id", s.authorizeOrgAction(authorization.ObjectCase, authorization.ActionDelete), s.DeleteCase)

	// -------- Tasks --------
	api.GET("/tasks", s.authorizeOrgAction(authorization.ObjectTask, authorization.ActionView), s.ListTasks)
	api.POST("/tasks", s.authorizeOrgAction(authorization.ObjectTask, authorization.ActionCreate), s.CreateTask)
	api.GET("/tasks/:id", s.authorizeOrgAction(authorization.ObjectTask, authorization.ActionView), s.GetTask)
	api.PATCH("/tasks/:id", s.authorizeOrgAction(authorization.ObjectTask, authorization.ActionUpdate), s.UpdateTask)
	api.DELETE("/tasks/:id", s.authorizeOrgAction(authorization.ObjectTask, authorization.ActionDelete), s.DeleteTask)

	// -------- Teams --------
	api.GET("/teams", s.authorizeOrgAction(authorization.ObjectTeam, authorization.ActionView), s.ListTeams)
	api.POST("/teams", s.authorizeOrgAction(authorization.ObjectTeam, authorization.ActionCreate), s.CreateTeam)
	api.GET("/teams/:id", s.authorizeOrgAction(authorization.ObjectTeam, authorization.ActionView), s.GetTeam)
	api.PATCH("/teams/:id", s.authorizeOrgAction(authorization.ObjectTeam, authorization.ActionUpdate), s.UpdateTeam)
	api.DELETE("/teams/:id", s.authorizeOrgAction(authorization.ObjectTeam, authorization.ActionDelete), s.DeleteTeam)

	// -------- Invoices --------
	api.GET("/invoices", s.authorizeOrgAction(authorization.ObjectInvoice, authorization.ActionView), s.ListInvoices)
	api.POST("/invoices", s.authorizeOrgAction(authorization.ObjectInvoice, authorization.ActionCreate), s.CreateInvoice)
	api.GET("/invoices/:id", s.authorizeOrgAction(authorization.ObjectInvoice, authorization.ActionView), s.GetInvoice)
	api.PATCH("/invoices/:id", s.authorizeOrgAction(authorization.ObjectInvoice, authorization.ActionUpdate), s.UpdateInvoice)
	api.DELETE("/invoices/:id", s.authorizeOrgAction(authorization.ObjectInvoice, authorization.ActionDelete), s.DeleteInvoice)
	api.POST("/invoices/:id/finalize", s.authorizeOrgAction(authorization.ObjectInvoice, authorization.ActionInvoiceFinalize), s.FinalizeInvoice)
	api.POST("/invoices/:id/pay", s.authorizeOrgAction(authorization.ObjectInvoice, authorization.ActionUpdate), s.MarkInvoicePaid)
	api.POST("/invoices/:id/cancel", s.authorizeOrgAction(authorization.ObjectInvoice, authorization.ActionUpdate), s.CancelInvoice)
	api.GET("/invoices/:id/pdf", s.authorizeOrgAction(authorization.ObjectInvoice, authorization.ActionInvoicePDF), s.RenderInvoicePDF)

	// -------- Orders --------
	api.GET("/orders", s.authorizeOrgAction(authorization.ObjectOrder, authorization.ActionView), s.ListOrders)
	api.POST("/orders", s.authorizeOrgAction(authorization.ObjectOrder, authorization.ActionCreate), s.CreateOrder)
	api.GET("/orders/:id", s.authorizeOrgAction(authorization.ObjectOrder, authorization.ActionView), s.GetOrder)
	api.PATCH("/orders/:id", s.authorizeOrgAction(authorization.ObjectOrder, authorization.ActionUpdate), s.UpdateOrder)
	api.DELETE("/orders/:id", s.authorizeOrgAction(authorization.ObjectOrder, authorization.ActionDelete), s.DeleteOrder)

	// -------- Boards --------
	api.GET("/boards", s.authorizeOrgAction(authorization.ObjectBoard, authorization.ActionView), s.ListBoards)
	api.POST("/boards", s.authorizeOrgAction(authorization.ObjectBoard, authorization.ActionCreate), s.CreateBoard)
	api.GET("/boards/:id", s.authorizeOrgAction(authorization.ObjectBoard, authorization.ActionView), s.GetBoard)
	api.DELETE("/boards/:id", s.authorizeOrgAction(authorization.ObjectBoard, authorization.ActionBoardManage), s.DeleteBoard)
	api.POST("/boards/:id/members", s.authorizeOrgAction(authorization.ObjectBoard, authorization.ActionBoardManage), s.AddBoardMember)
	api.DELETE("/boards/:id/members/:profileId", s.authorizeOrgAction(authorization.ObjectBoard, authorization.ActionBoardManage), s.RemoveBoardMember)
	api.GET("/boards/:id/tasks", s.authorizeOrgAction(authorization.ObjectBoard, authorization.ActionView), s.ListBoardTasks)
	api.POST("/boards/:id/tasks", s.authorizeOrgAction(authorization.ObjectBoard, authorization.ActionUpdate), s.CreateBoardTask)
	api.POST("/boards/:id/tasks/:taskId/move", s.authorizeOrgAction(authorization.ObjectBoard, authorization.ActionUpdate), s.MoveBoardTask)
	api.DELETE("/boards/:id/tasks/:taskId", s.authorizeOrgAction(authorization.ObjectBoard, authorization.ActionUpdate), s.DeleteBoardTask)

	// -------- Audit trail & RLS status --------
	api.GET("/audit-logs", s.authorizeOrgAction(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
	api.GET("/rls/status", s.authorizeOrgAction(authorization.ObjectAuditLog, authorization.ActionRLSStatusView), s.GetRLSStatus)
}
