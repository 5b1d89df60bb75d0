package server

import (
	"net/http"

	"ber-tracker/internal/handlers"
	"ber-tracker/internal/metrics"
	"ber-tracker/internal/middleware"
	"ber-tracker/internal/models"
	"ber-tracker/internal/workflow"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type Deps struct {
	DB            *gorm.DB
	Handler       *handlers.Handler
	Metrics       *metrics.Workflow
	Log           zerolog.Logger
	SessionSecret string
	SecureCookies bool
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(d.Log), gin.Recovery())

	store := cookie.NewStore([]byte(d.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   8 * 60 * 60,
		HttpOnly: true,
		Secure:   d.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("ber_session", store))
	r.Use(middleware.InjectActor(d.DB))

	h := d.Handler

	// AUTH
	r.POST("/login", h.Login)
	r.GET("/logout", h.Logout)

	// HEALTHCHECK
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	auth := r.Group("/")
	auth.Use(middleware.RequireAuth())

	auth.GET("/user", h.CurrentUser)

	// SUBMISSIONS
	auth.POST("/submit-project", h.SubmitProject())
	auth.POST("/submit-task", h.SubmitTask())
	auth.POST("/submit-work-element", h.SubmitWorkElement())
	auth.POST("/submit-budget", h.SubmitBudget())
	auth.POST("/submit-budget-change", h.SubmitBudgetChange())
	auth.POST("/submit-afe", h.SubmitAFE())
	auth.POST("/submit-invoice", h.SubmitInvoice)
	auth.POST("/submit-production", h.SubmitProduction())
	auth.POST("/cancel-invoice", h.CancelInvoice)
	auth.POST("/reinstate-invoice", h.ReinstateInvoice)

	// LOOKUPS
	auth.GET("/my-projects", h.MyProjects)
	auth.GET("/project-tasks/:id", h.ProjectTasks())
	auth.GET("/task-work-elements/:id", h.TaskWorkElements())
	auth.GET("/work-element-budgets/:id", h.WorkElementBudgets())
	auth.GET("/budget-afes/:id", h.BudgetAFEs())
	auth.GET("/afe-invoices/:id", h.AFEInvoices())
	auth.GET("/afe-ledger/:id", h.AFELedger)
	auth.GET("/invoice-file/:id", h.InvoiceFile)

	// APPROVALS: managers and admins
	managers := auth.Group("/", middleware.RequireRole(models.RoleManager, models.RoleAdmin))
	for _, k := range workflow.Kinds() {
		if !k.Decidable() {
			continue
		}
		managers.POST("/update-"+k.Slug(), h.Decide(k))
		managers.GET("/pending-"+k.Slug()+"s", h.Pending(k))
	}

	// ADMIN
	admin := auth.Group("/", middleware.RequireRole(models.RoleAdmin))
	admin.GET("/dashboard-metrics", h.DashboardMetrics)
	admin.GET("/admin/approved-projects", h.ApprovedProjects())
	admin.GET("/admin/approved-budgets", h.ApprovedBudgets())
	admin.GET("/admin/production-data", h.ProductionData())
	admin.GET("/admin/budget-changes", h.BudgetChanges())
	admin.GET("/admin/audit", h.AuditTrail)
	admin.POST("/admin/add-user", h.AddUser)
	admin.POST("/admin/change-role", h.ChangeRole)
	admin.POST("/admin/delete-user", h.DeleteUser)

	return r
}
