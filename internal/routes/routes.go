package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/lisalisi-cash/lisalisi_cash/internal/audit"
	"github.com/lisalisi-cash/lisalisi_cash/internal/config"
	"github.com/lisalisi-cash/lisalisi_cash/internal/consent"
	"github.com/lisalisi-cash/lisalisi_cash/internal/identity"
	"github.com/lisalisi-cash/lisalisi_cash/internal/loan"
	"github.com/lisalisi-cash/lisalisi_cash/internal/metrics"
	"github.com/lisalisi-cash/lisalisi_cash/internal/middleware"
	"github.com/lisalisi-cash/lisalisi_cash/internal/mobilemoney"
	"github.com/lisalisi-cash/lisalisi_cash/internal/scoring"
	"github.com/lisalisi-cash/lisalisi_cash/internal/ussd"
	"github.com/lisalisi-cash/lisalisi_cash/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg     config.Config
	DB      *pgxpool.Pool
	Cache   *redis.Client
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Services holds the wired business services. The caller keeps it around for
// scheduled work (the overdue sweep) and for tests.
type Services struct {
	Users    *identity.Service
	Consents *consent.Service
	Engine   *scoring.Engine
	Loans    *loan.Service
	Wallets  *wallet.Service
	Audit    *audit.Recorder
	USSD     *ussd.Service
	Sweeper  *loan.Sweeper
}

// Setup configures middlewares and all application routes, returning the
// wired services.
func Setup(app *fiber.App, d Deps) (*Services, error) {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLog(d.Logger))

	svcs := buildServices(d)

	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	pinLimiter := middleware.PINAttemptLimit(d.Cache, 5)
	RegisterAuthRoutes(api, svcs, d.Metrics, pinLimiter)
	RegisterConsentRoutes(api, svcs)
	RegisterScoringRoutes(api, svcs, d.Metrics)
	RegisterWalletRoutes(api, svcs)
	RegisterAuditRoutes(api, svcs)
	RegisterUSSDRoutes(api, svcs, d.Metrics)

	// Money movement sits behind the idempotency guard when Redis is up.
	loans := api.Group("/loans")
	if d.Cache != nil {
		loans.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterLoanRoutes(loans, svcs, d.Metrics)

	return svcs, nil
}

func buildServices(d Deps) *Services {
	var (
		auditStore   audit.Store
		userRepo     identity.Repository
		walletRepo   wallet.Repository
		consentRepo  consent.Repository
		snapshotRepo scoring.SnapshotRepository
		loanRepo     loan.Repository
	)
	if d.DB != nil {
		auditStore = audit.NewPostgresStore(d.DB)
		userRepo = identity.NewPostgresRepository(d.DB)
		walletRepo = wallet.NewPostgresRepository(d.DB)
		consentRepo = consent.NewPostgresRepository(d.DB)
		snapshotRepo = scoring.NewPostgresSnapshots(d.DB)
		loanRepo = loan.NewPostgresRepository(d.DB)
	} else {
		auditStore = audit.NewMemoryStore()
		userRepo = identity.NewMemoryRepository()
		walletRepo = wallet.NewMemoryRepository()
		consentRepo = consent.NewMemoryRepository()
		snapshotRepo = scoring.NewMemorySnapshots()
		loanRepo = loan.NewMemoryRepository()
	}

	recorder := audit.NewRecorder(auditStore, d.Logger)
	wallets := wallet.NewService(walletRepo)
	users := identity.NewService(userRepo, wallets, recorder, d.Logger)
	consents := consent.NewService(consentRepo, recorder)
	engine := scoring.NewEngine(snapshotRepo, loanRepo, mobilemoney.SimulatedSource{})
	loans := loan.NewService(loanRepo, consents, engine, mobilemoney.SimulatedPayer{}, recorder, d.Logger)
	sweeper := loan.NewSweeper(loanRepo, recorder, d.Logger)
	decoder := ussd.NewService(users, consents, loans, engine, d.Logger)

	return &Services{
		Users:    users,
		Consents: consents,
		Engine:   engine,
		Loans:    loans,
		Wallets:  wallets,
		Audit:    recorder,
		USSD:     decoder,
		Sweeper:  sweeper,
	}
}
