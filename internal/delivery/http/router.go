package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/doncapon/yemisshop-sub009/internal/config"
	authhandler "github.com/doncapon/yemisshop-sub009/internal/delivery/http/handler/auth"
	cataloghandler "github.com/doncapon/yemisshop-sub009/internal/delivery/http/handler/catalog"
	lookuphandler "github.com/doncapon/yemisshop-sub009/internal/delivery/http/handler/lookup"
	orderhandler "github.com/doncapon/yemisshop-sub009/internal/delivery/http/handler/order"
	otphandler "github.com/doncapon/yemisshop-sub009/internal/delivery/http/handler/otp"
	payouthandler "github.com/doncapon/yemisshop-sub009/internal/delivery/http/handler/payout"
	purchasehandler "github.com/doncapon/yemisshop-sub009/internal/delivery/http/handler/purchase"
	refundhandler "github.com/doncapon/yemisshop-sub009/internal/delivery/http/handler/refund"
	"github.com/doncapon/yemisshop-sub009/internal/delivery/middleware"
	"github.com/doncapon/yemisshop-sub009/internal/gateway/cac"
	"github.com/doncapon/yemisshop-sub009/internal/gateway/paystack"
	"github.com/doncapon/yemisshop-sub009/internal/gateway/supplier"
	"github.com/doncapon/yemisshop-sub009/internal/gateway/termii"
	"github.com/doncapon/yemisshop-sub009/internal/repository/postgres"
	orderpg "github.com/doncapon/yemisshop-sub009/internal/repository/postgres/order"
	otppg "github.com/doncapon/yemisshop-sub009/internal/repository/postgres/otp"
	payoutpg "github.com/doncapon/yemisshop-sub009/internal/repository/postgres/payout"
	purchasepg "github.com/doncapon/yemisshop-sub009/internal/repository/postgres/purchase"
	refundpg "github.com/doncapon/yemisshop-sub009/internal/repository/postgres/refund"
	supplierpg "github.com/doncapon/yemisshop-sub009/internal/repository/postgres/supplier"
	"github.com/doncapon/yemisshop-sub009/internal/repository/redisstore"
	authuc "github.com/doncapon/yemisshop-sub009/internal/usecase/auth"
	cataloguc "github.com/doncapon/yemisshop-sub009/internal/usecase/catalog"
	lookupuc "github.com/doncapon/yemisshop-sub009/internal/usecase/lookup"
	orderuc "github.com/doncapon/yemisshop-sub009/internal/usecase/order"
	otpuc "github.com/doncapon/yemisshop-sub009/internal/usecase/otp"
	payoutuc "github.com/doncapon/yemisshop-sub009/internal/usecase/payout"
	purchaseuc "github.com/doncapon/yemisshop-sub009/internal/usecase/purchase"
	refunduc "github.com/doncapon/yemisshop-sub009/internal/usecase/refund"
)

func RegisterRoutes(app *fiber.App, cfg config.Config, pool *pgxpool.Pool, rdb *redis.Client, log *zap.Logger) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	api := app.Group("/api")

	// Auth wiring
	accounts := postgres.NewAccountRepo(pool)
	loginUC := authuc.NewLoginUsecase(accounts, cfg.JWTSecret, cfg.JWTExpiresMinutes)
	loginH := authhandler.NewLoginHandler(loginUC)

	// Public route
	api.Post("/login", loginH.Handle)

	authed := middleware.RequireJWT(middleware.JWTConfig{Secret: cfg.JWTSecret})
	customerOnly := middleware.RequireRole(authuc.RoleCustomer)
	adminOnly := middleware.RequireRole(authuc.RoleAdmin)
	supplierSide := middleware.RequireRole(authuc.RoleSupplier, authuc.RoleAdmin)
	otpToken := middleware.RequireOtpToken()

	// OTP gate wiring (shared by pay, cancel and delivery flows)
	gate := otpuc.NewGate(otppg.NewOtpStoreAdapter(otppg.NewOtpRepo(pool)), cfg.OTP)
	otpH := otphandler.New(gate)
	api.Post("/otp/verify", authed, otpH.Verify)

	// Notification + dispatch gateways
	sender := termii.NewClient(cfg.Notify)
	dispatcher := supplier.NewClient(supplierpg.NewSupplierRepo(pool), cfg.Supplier)

	// Purchase order wiring
	purchaseStore := purchasepg.NewPurchaseStoreAdapter(pool)
	purchaseUC := purchaseuc.New(purchaseStore, dispatcher, gate, sender, cfg.Payout, log)
	purchaseH := purchasehandler.New(purchaseUC)

	// Order wiring (the splitter is the purchase usecase)
	orderUC := orderuc.New(orderpg.NewOrderStoreAdapter(pool), gate, purchaseUC, sender, log)
	orderH := orderhandler.New(orderUC)

	// Payout wiring
	payoutStore := payoutpg.NewPayoutStoreAdapter(pool, purchaseStore)
	engine := payoutuc.NewEngine(payoutStore, paystack.NewClient(cfg.Paystack), cfg.Payout, log)
	payoutH := payouthandler.New(engine)

	// Refund wiring
	refundUC := refunduc.New(refundpg.NewRefundStoreAdapter(pool), log)
	refundH := refundhandler.New(refundUC)

	// RC lookup wiring (redis-backed throttle)
	lookupUC := lookupuc.New(redisstore.NewRateGate(rdb), cac.NewClient(cfg.Lookup.CACBaseURL, cfg.Lookup.CACAPIKey), cfg.Lookup)
	lookupH := lookuphandler.New(lookupUC)

	// Catalog wiring
	catalogUC := cataloguc.New(postgres.NewCatalogStoreAdapter(postgres.NewCatalogRepo(pool)))
	catalogH := cataloghandler.New(catalogUC)

	// Catalog routes
	products := api.Group("/products", authed)
	products.Get("/", catalogH.List)
	products.Post("/", adminOnly, catalogH.Create)
	products.Patch("/:id", adminOnly, catalogH.Update)
	products.Get("/:id/offers", catalogH.ListOffers)
	products.Put("/:id/offers", supplierSide, catalogH.UpsertOffer)

	// Order routes
	orders := api.Group("/orders", authed)
	orders.Post("/", customerOnly, orderH.Checkout)
	orders.Get("/", orderH.List)
	orders.Get("/:id", orderH.Get)
	orders.Post("/:id/pay/otp", customerOnly, orderH.RequestPayOTP)
	orders.Post("/:id/pay", customerOnly, otpToken, orderH.ConfirmPay)
	orders.Post("/:id/cancel/otp", adminOnly, orderH.RequestCancelOTP)
	orders.Post("/:id/cancel", adminOnly, otpToken, orderH.ConfirmCancel)
	orders.Get("/:id/purchase-orders", purchaseH.ListByOrder)
	orders.Get("/:id/refunds", refundH.ListByOrder)

	// Purchase order routes
	pos := api.Group("/purchase-orders", authed)
	pos.Get("/:id", purchaseH.Get)
	pos.Post("/:id/accept", supplierSide, purchaseH.Accept)
	pos.Post("/:id/ship", supplierSide, purchaseH.MarkShipped)
	pos.Post("/:id/delivery/otp", customerOnly, purchaseH.RequestDeliveryOTP)
	pos.Post("/:id/delivery", customerOnly, otpToken, purchaseH.ConfirmDelivery)
	pos.Post("/:id/payout/release", adminOnly, payoutH.Release)

	// Refund routes
	refunds := api.Group("/refunds", authed)
	refunds.Post("/", customerOnly, refundH.Request)
	refunds.Get("/:id", refundH.Get)
	refunds.Patch("/:id/decision", supplierSide, refundH.Decide)
	refunds.Post("/:id/approve", adminOnly, refundH.Approve)

	// Supplier ledger + RC lookup
	api.Get("/suppliers/:id/balance", authed, adminOnly, refundH.SupplierBalance)
	api.Get("/lookup/rc/:rc", authed, supplierSide, lookupH.Lookup)
	api.Delete("/lookup/rc/:rc", authed, adminOnly, lookupH.Reset)
}
