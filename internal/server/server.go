// Package server exposes the procurement services over HTTP with gin.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/safar/go-procurement/internal/approval"
	"github.com/safar/go-procurement/internal/config"
	"github.com/safar/go-procurement/internal/dashboard"
	"github.com/safar/go-procurement/internal/purchase"
	"github.com/safar/go-procurement/internal/registration"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.UseRawPath = true
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))
	r.Use(ErrorHandlingMiddleware(log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return r
}

func registerGin(cfg *config.Config, log *zap.Logger, reg *prometheus.Registry) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	return NewEngine(log, reg)
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func run(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", srv.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	log           *zap.Logger
	purchases     *purchase.Service
	approvals     *approval.Registry
	registrations *registration.Service
	dashboard     *dashboard.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Logger        *zap.Logger
	Purchases     *purchase.Service
	Approvals     *approval.Registry
	Registrations *registration.Service
	Dashboard     *dashboard.Service
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:        p.Gin,
		log:           p.Logger,
		purchases:     p.Purchases,
		approvals:     p.Approvals,
		registrations: p.Registrations,
		dashboard:     p.Dashboard,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}

	s.registerAPIRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	orders := api.Group("/purchase-orders")
	{
		orders.POST("", s.CreatePurchaseOrder)
		orders.GET("", s.ListPurchaseOrders)
		orders.POST("/preview", s.PreviewTotals)
		orders.GET("/:po", s.GetPurchaseOrder)
		orders.PATCH("/:po", s.UpdatePurchaseOrder)
		orders.POST("/:po/transitions", s.TransitionPurchaseOrder)
		orders.PUT("/:po/invoice", s.AttachInvoice)
	}

	approvals := api.Group("/approvals")
	{
		approvals.GET("", s.ListPendingApprovals)
		approvals.GET("/:id", s.GetApprovalRequest)
		approvals.POST("/:id/approve", s.ApproveRequest)
		approvals.POST("/:id/reject", s.RejectRequest)
	}

	vendors := api.Group("/vendors")
	{
		vendors.POST("", s.CreateVendor)
		vendors.GET("", s.ListVendors)
		vendors.GET("/:id", s.GetVendor)
	}

	customers := api.Group("/customers")
	{
		customers.POST("", s.CreateCustomer)
		customers.GET("", s.ListCustomers)
		customers.GET("/:id", s.GetCustomer)
		customers.POST("/:id/receipts", s.IssueReceipt)
		customers.GET("/:id/receipts", s.ListReceipts)
	}

	employees := api.Group("/employees")
	{
		employees.POST("", s.CreateEmployee)
		employees.GET("", s.ListEmployees)
		employees.GET("/:id", s.GetEmployee)
	}

	dash := api.Group("/dashboard")
	{
		dash.GET("/summary", s.GetDashboardSummary)
		dash.GET("/activities", s.GetRecentActivities)
	}
}
