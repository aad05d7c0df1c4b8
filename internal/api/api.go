// Package api serves the storefront over HTTP.
package api

import (
	"context"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/discount"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
	"go.uber.org/zap"
)

type Catalog interface {
	FindItems(ctx context.Context, filter store.ItemFilter, sort store.SortOrder, page, pageSize int) (*store.OffsetPage[models.Item], error)
	ListDiscounted(ctx context.Context) ([]models.Item, error)
	ListCategories(ctx context.Context) ([]string, error)
	GetItem(ctx context.Context, id int64) (*models.Item, error)
	GetItemBySlug(ctx context.Context, slug string) (*models.Item, error)
	CreateItem(ctx context.Context, item models.Item) (*models.Item, error)
	UpdateItem(ctx context.Context, id int64, patch models.ItemPatch) (*models.Item, error)
	DeleteItem(ctx context.Context, id int64) error
}

type Orders interface {
	PlaceOrder(ctx context.Context, req store.PlaceOrderRequest) (*models.Order, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ListOrdersCursor(ctx context.Context, userID int64, cursor string, limit int) (*store.CursorPage[models.Order], error)
	CapturePayment(ctx context.Context, orderID int64, result models.PaymentResult) (*models.Order, error)
	MarkDelivered(ctx context.Context, orderID int64) (*models.Order, error)
}

type Users interface {
	CreateUser(ctx context.Context, email, name, passwordHash string, isAdmin bool) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, id int64, patch models.UserPatch) (*models.User, error)
}

// Sweeper clears lapsed discounts before a catalog read. It must not fail
// the request.
type Sweeper interface {
	Sweep(ctx context.Context)
}

type Options struct {
	Catalog        Catalog
	Orders         Orders
	Users          Users
	Sweeper        Sweeper
	Issuer         *auth.Issuer
	Clock          discount.Clock
	PageSize       int
	MaxPageSize    int
	AllowedOrigins []string
	Logger         *zap.Logger
}

type Handler struct {
	catalog     Catalog
	orders      Orders
	users       Users
	sweeper     Sweeper
	issuer      *auth.Issuer
	clock       discount.Clock
	pageSize    int
	maxPageSize int
	origins     []string
	logger      *zap.Logger
}

func New(opts Options) *Handler {
	if opts.Clock == nil {
		opts.Clock = discount.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Handler{
		catalog:     opts.Catalog,
		orders:      opts.Orders,
		users:       opts.Users,
		sweeper:     opts.Sweeper,
		issuer:      opts.Issuer,
		clock:       opts.Clock,
		pageSize:    opts.PageSize,
		maxPageSize: opts.MaxPageSize,
		origins:     opts.AllowedOrigins,
		logger:      opts.Logger.Named("api"),
	}
}

// Router builds the gin engine with every route registered.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())

	if len(h.origins) > 0 {
		r.Use(cors.New(h.corsConfig()))
	}

	requireAuth := auth.RequireAuth(h.issuer)
	requireAdmin := auth.RequireAdmin()

	products := r.Group("/api/products")
	{
		read := products.Group("", h.sweep())
		read.GET("", h.searchItems)
		read.GET("/search", h.searchItems)
		read.GET("/discounted", h.listDiscounted)
		read.GET("/categories", h.listCategories)
		read.GET("/slug/:slug", h.getItemBySlug)
		read.GET("/:id", h.getItem)
		read.GET("/:id/countdown", h.getCountdown)
		read.GET("/admin", requireAuth, requireAdmin, h.adminItems)

		products.POST("", requireAuth, requireAdmin, h.createItem)
		products.POST("/sample", requireAuth, requireAdmin, h.createSampleItem)
		products.PUT("/:id", requireAuth, requireAdmin, h.updateItem)
		products.DELETE("/:id", requireAuth, requireAdmin, h.deleteItem)
	}

	users := r.Group("/api/users")
	{
		users.POST("/signup", h.signUp)
		users.POST("/signin", h.signIn)
		users.PUT("/profile", requireAuth, h.updateProfile)
	}

	orders := r.Group("/api/orders", requireAuth)
	{
		orders.POST("", h.placeOrder)
		orders.GET("/mine", h.listMyOrders)
		orders.GET("/:id", h.getOrder)
		orders.PUT("/:id/pay", h.payOrder)
		orders.PUT("/:id/deliver", requireAdmin, h.deliverOrder)
	}

	return r
}

// corsConfig allows any origin when the list contains "*". Credentials are
// only allowed for an explicit origin list.
func (h *Handler) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if slices.Contains(h.origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = h.origins
		cfg.AllowCredentials = true
	}
	return cfg
}

// sweep resets lapsed discounts so the read that follows never serves an
// expired one.
func (h *Handler) sweep() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.sweeper != nil {
			h.sweeper.Sweep(c.Request.Context())
		}
		c.Next()
	}
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
