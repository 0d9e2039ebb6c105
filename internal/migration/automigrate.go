package migration

import (
	accountdomain "github.com/opencrmhq/opencrm/internal/account/domain"
	auditdomain "github.com/opencrmhq/opencrm/internal/audit/domain"
	authdomain "github.com/opencrmhq/opencrm/internal/auth/domain"
	boarddomain "github.com/opencrmhq/opencrm/internal/board/domain"
	casedomain "github.com/opencrmhq/opencrm/internal/caserecord/domain"
	contactdomain "github.com/opencrmhq/opencrm/internal/contact/domain"
	invoicedomain "github.com/opencrmhq/opencrm/internal/invoice/domain"
	leaddomain "github.com/opencrmhq/opencrm/internal/lead/domain"
	opportunitydomain "github.com/opencrmhq/opencrm/internal/opportunity/domain"
	orderdomain "github.com/opencrmhq/opencrm/internal/order/domain"
	orgdomain "github.com/opencrmhq/opencrm/internal/organization/domain"
	taskdomain "github.com/opencrmhq/opencrm/internal/task/domain"
	teamdomain "github.com/opencrmhq/opencrm/internal/team/domain"
	"gorm.io/gorm"
)

// autoMigrate derives the schema from the models on backends without
// the SQL migration path. Postgres installs never take this branch.
func autoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&orgdomain.Organization{},
		&orgdomain.Profile{},
		&authdomain.User{},
		&authdomain.Session{},
		&auditdomain.Entry{},
		&leaddomain.Lead{},
		&contactdomain.Contact{},
		&accountdomain.Account{},
		&opportunitydomain.Opportunity{},
		&opportunitydomain.LineItem{},
		&casedomain.Case{},
		&taskdomain.Task{},
		&teamdomain.Team{},
		&invoicedomain.Invoice{},
		&invoicedomain.LineItem{},
		&orderdomain.Order{},
		&orderdomain.LineItem{},
		&boarddomain.Board{},
		&boarddomain.Column{},
		&boarddomain.Task{},
		&boarddomain.Member{},
	)
}
