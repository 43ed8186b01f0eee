package server

import (
	"log/slog"
	"net/http"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/joseph-ayodele/workorders-tracker/internal/chat"
	"github.com/joseph-ayodele/workorders-tracker/internal/export"
	"github.com/joseph-ayodele/workorders-tracker/internal/repository"
	"github.com/joseph-ayodele/workorders-tracker/internal/storage"
)

// Deps are the collaborators the HTTP layer is built from.
type Deps struct {
	Processor      Processor
	WorkOrders     repository.WorkOrderRepository
	Files          repository.WorkOrderFileRepository
	Tasks          repository.WorkOrderTaskRepository
	Store          storage.ObjectStore
	KeyPrefix      string
	Export         *export.Service
	Hub            *chat.Hub
	DB             *entsql.Driver
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Server holds the handlers behind the gin engine.
type Server struct {
	processor  Processor
	workOrders repository.WorkOrderRepository
	files      repository.WorkOrderFileRepository
	tasks      repository.WorkOrderTaskRepository
	store      storage.ObjectStore
	keyPrefix  string
	export     *export.Service
	hub        *chat.Hub
	db         *entsql.Driver
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Server{
		processor:  d.Processor,
		workOrders: d.WorkOrders,
		files:      d.Files,
		tasks:      d.Tasks,
		store:      d.Store,
		keyPrefix:  d.KeyPrefix,
		export:     d.Export,
		hub:        d.Hub,
		db:         d.DB,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// origins are enforced by the CORS layer
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: d.Logger,
	}
}

// NewRouter builds the engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	s := New(d)
	return s.Routes(d.AllowedOrigins)
}

func (s *Server) Routes(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestContext(s.logger))
	r.Use(RequestLogger(s.logger))
	r.Use(corsMiddleware(allowedOrigins))

	r.GET("/healthz", s.healthz)

	api := r.Group("/api")
	api.POST("/process-work-order", s.processWorkOrder)

	wo := api.Group("/work-orders")
	wo.GET("", s.listWorkOrders)
	wo.GET("/export.xlsx", s.exportWorkOrders)
	wo.GET("/:id", s.getWorkOrder)
	wo.GET("/:id/tasks", s.listTasks)

	ch := api.Group("/chat")
	ch.GET("/ws", s.chatSocket)
	ch.GET("/messages", s.chatHistory)
	ch.GET("/presence", s.chatPresence)

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", headerRequestID},
		ExposeHeaders:    []string{headerRequestID, "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
