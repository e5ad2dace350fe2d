package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/roomwatt/internal/authorization"
	"github.com/smallbiznis/roomwatt/internal/billing"
	billingdomain "github.com/smallbiznis/roomwatt/internal/billing/domain"
	"github.com/smallbiznis/roomwatt/internal/clock"
	"github.com/smallbiznis/roomwatt/internal/config"
	"github.com/smallbiznis/roomwatt/internal/identity"
	"github.com/smallbiznis/roomwatt/internal/invoice"
	invoicedomain "github.com/smallbiznis/roomwatt/internal/invoice/domain"
	"github.com/smallbiznis/roomwatt/internal/observability"
	obsmiddleware "github.com/smallbiznis/roomwatt/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/roomwatt/internal/observability/metrics"
	obstracing "github.com/smallbiznis/roomwatt/internal/observability/tracing"
	"github.com/smallbiznis/roomwatt/internal/proof"
	"github.com/smallbiznis/roomwatt/internal/ratelimit"
	"github.com/smallbiznis/roomwatt/internal/reporting"
	reportingdomain "github.com/smallbiznis/roomwatt/internal/reporting/domain"
	"github.com/smallbiznis/roomwatt/internal/room"
	roomdomain "github.com/smallbiznis/roomwatt/internal/room/domain"
	"github.com/smallbiznis/roomwatt/internal/scheduler"
	"github.com/smallbiznis/roomwatt/internal/usage"
	usagedomain "github.com/smallbiznis/roomwatt/internal/usage/domain"
	"github.com/smallbiznis/roomwatt/internal/usage/liveevents"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Services wires every domain module the HTTP API and the scheduler share.
var Services = fx.Options(
	identity.Module,
	authorization.Module,
	ratelimit.Module,
	proof.Module,
	room.Module,
	usage.Module,
	invoice.Module,
	billing.Module,
	reporting.Module,
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	useJSONFieldNames()

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

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := strings.TrimSpace(cfg.HTTPAddr)
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", addr))
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

type tokenVerifier interface {
	Verify(raw string) (identity.Actor, error)
}

type readingLimiter interface {
	Enabled() bool
	AllowRoom(ctx context.Context, roomID string) (*ratelimit.RateLimitResult, error)
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	clock          clock.Clock
	metering       *config.MeteringConfigHolder
	verifier       tokenVerifier
	authzSvc       authorization.Service
	roomSvc        roomdomain.Service
	usageSvc       usagedomain.Service
	invoiceSvc     invoicedomain.Service
	billingSvc     billingdomain.Service
	reportingSvc   reportingdomain.Service
	liveEvents     *liveevents.Hub
	proofStore     proof.Store
	obsMetrics     *obsmetrics.Metrics
	readingLimiter readingLimiter

	scheduler *scheduler.Scheduler
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	Clock          clock.Clock
	Metering       *config.MeteringConfigHolder
	Verifier       *identity.Verifier
	AuthzSvc       authorization.Service
	RoomSvc        roomdomain.Service
	UsageSvc       usagedomain.Service
	InvoiceSvc     invoicedomain.Service
	BillingSvc     billingdomain.Service
	ReportingSvc   reportingdomain.Service
	LiveEvents     *liveevents.Hub                `optional:"true"`
	ProofStore     proof.Store                    `optional:"true"`
	ObsMetrics     *obsmetrics.Metrics            `optional:"true"`
	ReadingLimiter *ratelimit.ReadingIngestLimiter `optional:"true"`

	Scheduler *scheduler.Scheduler `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		clock:        p.Clock,
		metering:     p.Metering,
		verifier:     p.Verifier,
		authzSvc:     p.AuthzSvc,
		roomSvc:      p.RoomSvc,
		usageSvc:     p.UsageSvc,
		invoiceSvc:   p.InvoiceSvc,
		billingSvc:   p.BillingSvc,
		reportingSvc: p.ReportingSvc,
		liveEvents:   p.LiveEvents,
		proofStore:   p.ProofStore,
		obsMetrics:   p.ObsMetrics,
		scheduler:    p.Scheduler,
	}
	if p.ReadingLimiter != nil {
		svc.readingLimiter = p.ReadingLimiter
	}

	svc.RegisterAPIRoutes()
	svc.registerFileRoutes()
	svc.RegisterDevRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api", s.BearerAuth())

	rooms := api.Group("/rooms")
	{
		rooms.GET("", s.ListRooms)
		rooms.POST("", s.CreateRoom)
		rooms.GET("/:id", s.GetRoom)
		rooms.PUT("/:id", s.UpdateRoom)
		rooms.DELETE("/:id", s.DeleteRoom)
		rooms.PUT("/:id/occupant", s.AssignOccupant)
		rooms.PUT("/:id/switches/:switch", s.SetSwitch)
		rooms.GET("/:id/switches", s.GetSwitches)
		rooms.GET("/:id/readings/live", s.StreamRoomReadings)
	}

	api.POST("/readings", s.ReadingIngestRateLimit(), s.RecordReading)
	api.GET("/readings", s.ListReadings)

	invoices := api.Group("/invoices")
	{
		invoices.POST("/generate", s.GenerateInvoices)
		invoices.GET("", s.ListInvoices)
		invoices.GET("/:id", s.GetInvoice)
		invoices.GET("/:id/pdf", s.DownloadInvoicePDF)
		invoices.POST("/:id/proof", s.SubmitInvoiceProof)
		invoices.POST("/:id/confirm", s.ConfirmInvoice)
		invoices.POST("/:id/reject", s.RejectInvoice)
	}

	api.GET("/dashboard", s.OwnerDashboard)

	me := api.Group("/me")
	{
		me.GET("/readings", s.ListMyReadings)
		me.GET("/invoices", s.ListMyInvoices)
		me.GET("/dashboard", s.TenantDashboard)
	}
}

// registerFileRoutes serves uploaded proofs when they live on local disk.
func (s *Server) registerFileRoutes() {
	local, ok := s.proofStore.(*proof.LocalStore)
	if !ok || local == nil {
		return
	}
	base := strings.TrimSpace(s.cfg.Storage.PublicBaseURL)
	if !strings.HasPrefix(base, "/") || base == "/" {
		return
	}
	s.engine.Static(base, local.Dir())
}
