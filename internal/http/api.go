package http

import (
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github-faces/internal/cache"
	"github-faces/internal/domain"
	"github-faces/internal/repository"
)

// Handler serves the generated static site plus a small JSON API over the
// cache and the run journal.
type Handler struct {
	cache    *cache.Store
	runs     repository.RunRepository
	siteDir  string
	facesDir string
}

func NewHandler(store *cache.Store, runs repository.RunRepository, siteDir, facesDir string) *Handler {
	return &Handler{
		cache:    store,
		runs:     runs,
		siteDir:  siteDir,
		facesDir: facesDir,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	router.StaticFile("/", filepath.Join(h.siteDir, "index.html"))
	router.StaticFile("/sitemap.xml", filepath.Join(h.siteDir, "sitemap.xml"))
	router.StaticFile("/feed.xml", filepath.Join(h.siteDir, "feed.xml"))
	router.Static("/images/faces", h.facesDir)

	api := router.Group("/api")
	{
		api.GET("/users", h.listUsers)
		api.GET("/runs", h.listRuns)
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.cache.Load()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cache not available, run a fetch first"})
		return
	}
	c.JSON(http.StatusOK, users)
}

type runResponse struct {
	ID                string `json:"id"`
	StartedAt         string `json:"started_at"`
	FinishedAt        string `json:"finished_at"`
	Discovered        int    `json:"discovered"`
	Enriched          int    `json:"enriched"`
	AvatarsDownloaded int    `json:"avatars_downloaded"`
	AvatarsPruned     int    `json:"avatars_pruned"`
}

func (h *Handler) listRuns(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusOK, []runResponse{})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := h.runs.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]runResponse, len(runs))
	for i := range runs {
		resp[i] = runToResponse(runs[i])
	}
	c.JSON(http.StatusOK, resp)
}

func runToResponse(run domain.Run) runResponse {
	return runResponse{
		ID:                run.ID,
		StartedAt:         run.StartedAt.UTC().Format("2006-01-02T15:04:05Z"),
		FinishedAt:        run.FinishedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Discovered:        run.Discovered,
		Enriched:          run.Enriched,
		AvatarsDownloaded: run.AvatarsDownloaded,
		AvatarsPruned:     run.AvatarsPruned,
	}
}
