package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/borrowing-ledger-go/ledger"
)

const defaultServiceName = "borrowing-ledger"

// RouterConfig holds the collaborators of the router. Logger and TracerProvider are optional.
type RouterConfig struct {
	Borrowings     Borrowings
	Catalog        ledger.Catalog
	Logger         ledger.Logger
	TracerProvider trace.TracerProvider
	ServiceName    string
	AllowOrigins   []string
}

// NewRouter builds the gin engine with all routes and middleware.
func NewRouter(cfg RouterConfig) *gin.Engine {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	var otelOptions []otelgin.Option
	if cfg.TracerProvider != nil {
		otelOptions = append(otelOptions, otelgin.WithTracerProvider(cfg.TracerProvider))
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		otelgin.Middleware(serviceName, otelOptions...),
		CORS(cfg.AllowOrigins),
		AttachRequestID(),
		RequestLogger(cfg.Logger),
	)

	router.GET("/healthcheck", func(c *gin.Context) {
		respondOK(c, http.StatusOK, nil)
	})

	h := NewHandler(cfg.Borrowings, cfg.Catalog)

	api := router.Group("/api/v1")
	{
		api.POST("/borrow/book", h.Borrow)
		api.POST("/borrow/book/return", h.Return)
		api.GET("/borrow/book/list", h.List)

		api.POST("/book", h.RegisterBook)
		api.GET("/book/:id/stock", h.StockOf)
		api.GET("/book/:id/stock-log", h.StockLogOf)

		api.POST("/borrower", h.RegisterBorrower)
		api.GET("/borrower/:id", h.Borrower)
	}

	return router
}
