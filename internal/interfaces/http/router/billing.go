package router

import (
	"github.com/schoolpay/backend/internal/interfaces/http/handler"
	"github.com/schoolpay/backend/internal/interfaces/http/middleware"
)

// BillingRoutes builds the /billing group. Every route requires the cron
// bearer secret. The run trigger answers GET as well as POST because some
// schedulers can only issue GET.
func BillingRoutes(cronSecret string, run *handler.BillingRunHandler, ledger *handler.ChargeLedgerHandler) *DomainGroup {
	g := NewDomainGroup("billing", "/billing")
	g.Use(middleware.CronSecretAuth(cronSecret))
	g.POST("/run", run.Run)
	g.GET("/run", run.Run)
	g.GET("/charges", ledger.List)
	return g
}
