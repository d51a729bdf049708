package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/0x360x36/miauhome.cl/api/controllers"
	"github.com/0x360x36/miauhome.cl/api/middleware"
	"github.com/0x360x36/miauhome.cl/api/responses"
	"github.com/0x360x36/miauhome.cl/pkg/config"
	pkgerrors "github.com/0x360x36/miauhome.cl/pkg/errors"
	"github.com/0x360x36/miauhome.cl/pkg/logger"
)

// RouterParams carries the collaborators wired into the storefront routes.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	Sessions    controllers.SessionResolver
	Catalog     controllers.CatalogReader
	Checkout    controllers.CheckoutService
	Identity    middleware.IdentityParser
	Readiness   map[string]controllers.ReadinessCheck
	Gatherer    prometheus.Gatherer
	GuestCookie middleware.GuestCookie
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.CORSOrigins),
	)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeNotFound, "route not found"))
	})

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Readiness))
	})

	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ProductsList(p.Catalog, logg))
		r.Get("/{productID}", controllers.ProductDetail(p.Catalog, logg))
	})

	r.Group(func(r chi.Router) {
		r.Use(
			middleware.GuestProfile(p.GuestCookie, logg),
			middleware.Identity(p.Identity, logg),
		)

		r.Route("/api/v1/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(p.Sessions, logg))
			r.Delete("/", controllers.CartClear(p.Sessions, logg))
			r.Post("/items", controllers.CartAddItem(p.Sessions, p.Catalog, logg))
			r.Delete("/items/{productID}", controllers.CartRemoveItem(p.Sessions, logg))
		})

		r.Post("/api/v1/checkout", controllers.CheckoutBegin(p.Sessions, p.Checkout, logg))
		r.Get("/checkout/result", controllers.CheckoutResult(p.Sessions, p.Checkout, logg))
	})

	return r
}
