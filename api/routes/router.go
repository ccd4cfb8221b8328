package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/merchshop/storefront-backend/api/controllers"
	"github.com/merchshop/storefront-backend/api/middleware"
	"github.com/merchshop/storefront-backend/pkg/config"
	"github.com/merchshop/storefront-backend/pkg/db"
	"github.com/merchshop/storefront-backend/pkg/logger"
	"github.com/merchshop/storefront-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	metricsHandler http.Handler,
	productService controllers.ProductService,
	cartService controllers.CartService,
	checkoutService controllers.CheckoutService,
	couponService controllers.CouponService,
	orderReader controllers.OrderReader,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    dbP,
			"redis": redisClient,
		}))
	})

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", controllers.ProductList(productService, logg))
		r.Get("/products/{productId}", controllers.ProductGet(productService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.CartSession(logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartGet(cartService, logg))
				r.Delete("/", controllers.CartClear(cartService, checkoutService, logg))
				r.Post("/items", controllers.CartAddItem(cartService, productService, logg))
				r.Patch("/items", controllers.CartUpdateQuantity(cartService, logg))
				r.Delete("/items", controllers.CartRemoveItem(cartService, logg))
				r.Post("/buy-now", controllers.CartBuyNow(cartService, productService, logg))
				r.Get("/buy-now", controllers.CartBuyNowGet(cartService, logg))
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/summary", controllers.CheckoutSummary(checkoutService, logg))
				r.Get("/coupon", controllers.CouponGet(couponService, logg))
				r.Post("/coupon", controllers.CouponApply(couponService, cartService, logg))
				r.Delete("/coupon", controllers.CouponRemove(couponService, logg))
				r.With(middleware.Idempotency(redisClient, cfg.HTTP.IdempotencyTTL, logg)).
					Post("/orders", controllers.OrderSubmit(checkoutService, logg))
				r.Get("/orders/{orderId}", controllers.OrderGet(orderReader, logg))
			})
		})
	})

	return r
}
