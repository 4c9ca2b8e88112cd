package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tmdgusya/crawl-selector/internal/logger"
	"github.com/tmdgusya/crawl-selector/internal/messaging"
	"github.com/tmdgusya/crawl-selector/internal/metrics"
	"github.com/tmdgusya/crawl-selector/internal/picker"
	"github.com/tmdgusya/crawl-selector/internal/recipe"
	"github.com/tmdgusya/crawl-selector/internal/selector"
	"github.com/tmdgusya/crawl-selector/internal/sse"
)

// Deps are the collaborators the routes are served from.
type Deps struct {
	StoreDriver string
	Store       recipe.Store
	Editor      *recipe.Editor
	Bus         *messaging.Bus
	Synth       *selector.Synthesizer
	Broker      sse.Broker
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	Log         logger.Logger

	// Host serves the in-process live page. Nil when the content context
	// is a remote websocket peer.
	Host *picker.Host
	// ContentSocket accepts the remote content peer. Nil when Host is set.
	ContentSocket http.Handler
}

// RegisterRoutes mounts every route on r.
func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/health", healthHandler(d))
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/api/v1")

	ext := &extractHandler{
		client:  messaging.NewClient(d.Bus, messaging.OriginPanel),
		metrics: d.Metrics,
		log:     d.Log,
	}
	v1.POST("/extract/field", ext.Field)
	v1.POST("/extract/fields", ext.Fields)
	v1.POST("/extract/fetch", ext.Fetch)

	rec := &recipeHandler{store: d.Store, editor: d.Editor, log: d.Log}
	v1.GET("/recipes", rec.List)
	v1.POST("/recipes", rec.Create)
	v1.POST("/recipes/import", rec.Import)
	v1.GET("/recipes/active", rec.GetActive)
	v1.PUT("/recipes/active", rec.SetActive)
	v1.POST("/recipes/active/fields", rec.AddField)
	v1.PUT("/recipes/active/fields/:fieldId", rec.UpdateField)
	v1.DELETE("/recipes/active/fields/:fieldId", rec.DeleteField)
	v1.GET("/recipes/active/duplicate", rec.PendingDuplicate)
	v1.POST("/recipes/active/duplicate", rec.ResolveDuplicate)
	v1.GET("/recipes/:id", rec.Get)
	v1.PUT("/recipes/:id", rec.Update)
	v1.DELETE("/recipes/:id", rec.Delete)
	v1.GET("/recipes/:id/export", rec.Export)

	sug := &suggestHandler{synth: d.Synth}
	v1.POST("/suggest", sug.Suggest)

	msg := &messageHandler{bus: d.Bus, log: d.Log}
	v1.POST("/messages", msg.Post)
	v1.POST("/picker/activate", msg.command(messaging.KindActivatePicker))
	v1.POST("/picker/deactivate", msg.command(messaging.KindDeactivatePicker))

	if d.Host != nil {
		pg := &pageHandler{host: d.Host, log: d.Log}
		v1.PUT("/page", pg.Load)
		v1.GET("/page/picker", pg.State)
		v1.POST("/page/hover", pg.Hover)
		v1.POST("/page/click", pg.Click)
		v1.POST("/page/key", pg.Key)
	}
	if d.ContentSocket != nil {
		v1.GET("/ws/content", gin.WrapH(d.ContentSocket))
	}

	if d.Broker != nil {
		v1.GET("/events", sse.Handler(d.Broker, d.Log))
	}
}

func healthHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{
			"status":            "healthy",
			"store":             d.StoreDriver,
			"content_connected": d.Bus.Attached(messaging.OriginContent),
		}
		if d.Broker != nil {
			body["sse_clients"] = d.Broker.ClientCount()
		}
		c.JSON(http.StatusOK, body)
	}
}

func respondError(c *gin.Context, status int, msg string, err error) {
	body := gin.H{"error": msg}
	if err != nil {
		body["details"] = err.Error()
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}
