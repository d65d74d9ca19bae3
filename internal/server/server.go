package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/vendora/internal/catalog"
	catalogdomain "github.com/smallbiznis/vendora/internal/catalog/domain"
	"github.com/smallbiznis/vendora/internal/changerequest"
	changerequestdomain "github.com/smallbiznis/vendora/internal/changerequest/domain"
	"github.com/smallbiznis/vendora/internal/config"
	"github.com/smallbiznis/vendora/internal/locker"
	"github.com/smallbiznis/vendora/internal/machine"
	machinedomain "github.com/smallbiznis/vendora/internal/machine/domain"
	"github.com/smallbiznis/vendora/internal/observability"
	obsmiddleware "github.com/smallbiznis/vendora/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/vendora/internal/observability/metrics"
	obstracing "github.com/smallbiznis/vendora/internal/observability/tracing"
	"github.com/smallbiznis/vendora/internal/pricecard"
	"github.com/smallbiznis/vendora/internal/template"
	templatedomain "github.com/smallbiznis/vendora/internal/template/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("http.server",
	config.Module,
	fx.Provide(registerGin),
	locker.Module,
	catalog.Module,
	template.Module,
	machine.Module,
	changerequest.Module,
	pricecard.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
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
	engine           *gin.Engine
	cfg              config.Config
	catalogSvc       catalogdomain.Service
	templateSvc      templatedomain.Service
	machineSvc       machinedomain.Service
	changeRequestSvc changerequestdomain.Service
	priceCardSvc     *pricecard.Service
	policy           *config.PricingPolicyHolder
	obsMetrics       *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin              *gin.Engine
	Cfg              config.Config
	CatalogSvc       catalogdomain.Service
	TemplateSvc      templatedomain.Service
	MachineSvc       machinedomain.Service
	ChangeRequestSvc changerequestdomain.Service
	PriceCardSvc     *pricecard.Service
	Policy           *config.PricingPolicyHolder
	ObsMetrics       *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:           p.Gin,
		cfg:              p.Cfg,
		catalogSvc:       p.CatalogSvc,
		templateSvc:      p.TemplateSvc,
		machineSvc:       p.MachineSvc,
		changeRequestSvc: p.ChangeRequestSvc,
		priceCardSvc:     p.PriceCardSvc,
		policy:           p.Policy,
		obsMetrics:       p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Products --------
	api.GET("/products", s.ListProducts)
	api.GET("/products/:id", s.GetProductByID)

	// -------- Templates --------
	api.GET("/templates", s.ListTemplates)
	api.GET("/templates/:id", s.GetTemplateByID)

	// -------- Machines --------
	api.GET("/machines", s.ListMachines)
	api.GET("/machines/:id", s.GetMachineByID)
	api.GET("/machines/:id/pricing", s.GetMachinePricing)

	// -------- Pricing --------
	api.POST("/pricing/quote", s.QuotePrice)

	// -------- Change Requests --------
	api.POST("/machines/:id/change-requests", s.SubmitChangeRequest)
	api.GET("/machines/:id/change-requests", s.ListChangeRequests)
	api.GET("/change-requests/:id", s.GetChangeRequestByID)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	// -------- Products --------
	admin.POST("/products", s.CreateProduct)
	admin.PATCH("/products/:id", s.UpdateProduct)
	admin.POST("/products/:id/archive", s.ArchiveProduct)

	// -------- Templates --------
	admin.POST("/templates", s.CreateTemplate)
	admin.PATCH("/templates/:id", s.UpdateTemplate)
	admin.POST("/templates/:id/publish", s.PublishTemplate)
	admin.POST("/templates/:id/retire", s.RetireTemplate)

	// -------- Machines --------
	admin.POST("/machines", s.OnboardMachine)
	admin.PUT("/machines/:id/slots", s.ReplaceMachineSlots)
	admin.POST("/machines/:id/activate", s.ActivateMachine)
	admin.POST("/machines/:id/decommission", s.DecommissionMachine)
	admin.GET("/machines/:id/price-card", s.DownloadPriceCard)

	// -------- Change Requests --------
	admin.POST("/change-requests/:id/approve", s.ApproveChangeRequest)
	admin.POST("/change-requests/:id/reject", s.RejectChangeRequest)
}
