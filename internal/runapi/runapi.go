// Package runapi exposes the run engine over HTTP: submit a run, poll its
// state, stream its events over a WebSocket, cancel it, and list receipts.
//
// Grounded on services/orchestrator/orchestrator.go's gin bootstrap
// (gin.Default(), an otelgin-style tracing middleware, a Prometheus
// /metrics endpoint); simplified here to a stdout trace exporter since
// there's no OTLP collector in scope, and combined with gorilla/websocket
// for the event stream the reference orchestrator didn't need.
package runapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kajovo/cascade/internal/engine"
	"github.com/kajovo/cascade/internal/ledger"
	"github.com/kajovo/cascade/internal/model"
	"github.com/kajovo/cascade/internal/supervisor"
	"github.com/kajovo/cascade/pkg/logging"
)

var tracer = otel.Tracer("github.com/kajovo/cascade/internal/runapi")

var (
	runsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cascade_runs_started_total", Help: "Runs started, by mode."},
		[]string{"mode"},
	)
	runsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cascade_runs_completed_total", Help: "Runs completed, by mode and status."},
		[]string{"mode", "status"},
	)
)

func init() {
	prometheus.MustRegister(runsStarted, runsCompleted)
}

// Deps are the collaborators the API layer wires into handlers.
type Deps struct {
	Supervisor *supervisor.Supervisor
	Ledger     *ledger.DB
	Log        *logging.Logger
	// Launch starts a run for req and returns the handle driving it; the
	// caller (cmd/cascadectl's server command) supplies this so runapi
	// doesn't need to know how to construct a cascade.Engine itself.
	Launch func(req model.RunRequest) (*supervisor.Handle, error)
	// Resume restarts runID from its last persisted state; same rationale
	// as Launch.
	Resume func(runID string) (*supervisor.Handle, error)
	// LogDir is the run log root, used for list_runs().
	LogDir string
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NewRouter builds the gin engine with tracing middleware, Prometheus
// metrics, and every run-lifecycle route.
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(tracingMiddleware())
	r.Use(loggingMiddleware(deps.Log))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/runs", postRun(deps))
	r.GET("/runs", listRuns(deps))
	r.GET("/runs/:id", getRun(deps))
	r.POST("/runs/:id/cancel", cancelRun(deps))
	r.POST("/runs/:id/resume", resumeRun(deps))
	r.GET("/runs/:id/events", streamEvents(deps))
	r.GET("/runs/:id/receipts", getReceipts(deps))

	return r
}

func tracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), c.FullPath())
		defer span.End()
		span.SetAttributes(attribute.String("http.method", c.Request.Method))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
	}
}

func loggingMiddleware(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if log != nil {
			log.Info("http_request", "method", c.Request.Method, "path", c.FullPath(), "status", c.Writer.Status(), "duration_ms", time.Since(start).Milliseconds())
		}
	}
}

func postRun(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.RunRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		handle, err := deps.Launch(req)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		runsStarted.WithLabelValues(string(req.Mode)).Inc()
		go func() {
			<-handle.Done()
			status := "done"
			if handle.Err() != nil {
				status = "failed"
			}
			if handle.Cancelled() {
				status = "cancelled"
			}
			runsCompleted.WithLabelValues(string(req.Mode), status).Inc()
		}()
		c.JSON(http.StatusAccepted, gin.H{"run_id": handle.RunID})
	}
}

func getRun(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		handle, ok := deps.Supervisor.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		c.JSON(http.StatusOK, handle.State())
	}
}

func listRuns(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		summaries, err := engine.List(deps.LogDir)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summaries)
	}
}

func resumeRun(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Resume == nil {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "resume not configured"})
			return
		}
		handle, err := deps.Resume(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"run_id": handle.RunID})
	}
}

func cancelRun(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := deps.Supervisor.Cancel(c.Param("id")); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
	}
}

func getReceipts(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := deps.Ledger.QueryByRun(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

// streamEvents upgrades to a WebSocket and relays every event published for
// this run's id until the client disconnects or the run finishes.
func streamEvents(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		runID := c.Param("id")
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sub := deps.Supervisor.Events().Subscribe()
		defer deps.Supervisor.Events().Unsubscribe(sub)

		handle, _ := deps.Supervisor.Get(runID)
		for {
			select {
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if ev.RunID != runID {
					continue
				}
				data, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			case <-timeoutIfDone(handle):
				return
			}
		}
	}
}

func timeoutIfDone(h *supervisor.Handle) <-chan struct{} {
	if h == nil {
		return nil
	}
	return h.Done()
}
