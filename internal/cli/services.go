package cli

import (
	"spendy/internal/cache"
	"spendy/internal/config"
	"spendy/internal/core"
	apphttp "spendy/internal/http"
	"spendy/internal/services"
	"spendy/internal/storage"
)

// BuildServices wires the use cases on top of repo. A nil publisher records
// activity straight into the database. The returned manager owns the stats
// cache; cleanup is started by the caller.
func BuildServices(cfg *config.Config, repo *storage.SQLiteRepository, publisher services.ActivityPublisher) (apphttp.Services, *cache.Manager) {
	clock := services.SystemClock(cfg.Location())

	statsCache := cache.NewLRUCache[core.MonthlyStats](cfg.StatsCacheSize, cfg.StatsCacheTTL)
	caches := cache.NewManager()
	caches.Register("monthly_stats", statsCache)

	activity := services.NewActivityService(repo, publisher, clock)
	budget := services.NewBudgetService(repo, statsCache, clock)

	return apphttp.Services{
		Savings:       services.NewSavingsService(repo, activity, budget, clock),
		Budget:        budget,
		Notifications: services.NewNotificationService(repo, clock),
		Ledger:        services.NewLedgerService(repo, activity, budget, clock),
		Activity:      activity,
	}, caches
}
