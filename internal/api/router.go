package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/LJTian/InTheLoop/internal/pipeline"
	"github.com/LJTian/InTheLoop/internal/registry"
	"github.com/gin-gonic/gin"
)

const maxTopN = 50

// Articles 文章与热门话题的读取入口，由 pipeline.Pipeline 实现
type Articles interface {
	GetArticles(ctx context.Context, q pipeline.Query) pipeline.Listing
	Refresh(ctx context.Context) pipeline.Listing
	GetTrending(ctx context.Context, topN int) pipeline.TrendingResult
}

// Feeds feed 管理，由 registry.Manager 实现
type Feeds interface {
	Active(ctx context.Context) ([]registry.FeedInfo, error)
	Available(ctx context.Context) (map[string][]string, int, error)
	Hide(ctx context.Context, url string) error
	Unhide(ctx context.Context, url string) error
	Add(ctx context.Context, rawURL, category string) (string, error)
}

type Server struct {
	articles Articles
	feeds    Feeds
}

func NewServer(articles Articles, feeds Feeds) *Server {
	return &Server{articles: articles, feeds: feeds}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	g := r.Group("/api")
	{
		g.GET("/articles", s.listArticles)
		g.GET("/refresh", s.refresh)
		g.POST("/refresh", s.refresh)
		g.GET("/trending", s.trending)

		g.GET("/feeds", s.listFeeds)
		g.GET("/feeds/available", s.availableFeeds)
		g.POST("/feeds/hide", s.hideFeed)
		g.POST("/feeds/unhide", s.unhideFeed)
		g.POST("/feeds/add", s.addFeed)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

func (s *Server) listArticles(c *gin.Context) {
	force, _ := strconv.ParseBool(c.DefaultQuery("refresh", "false"))
	l := s.articles.GetArticles(c.Request.Context(), pipeline.Query{
		ForceRefresh: force,
		Category:     c.Query("category"),
		Search:       c.Query("q"),
	})
	ok(c, gin.H{
		"articles": l.Articles,
		"cached":   l.CachedAt,
		"total":    l.Total,
		"count":    len(l.Articles),
	})
}

func (s *Server) refresh(c *gin.Context) {
	l := s.articles.Refresh(c.Request.Context())
	ok(c, gin.H{
		"refreshed": l.Total,
		"cached":    l.CachedAt,
	})
}

func (s *Server) trending(c *gin.Context) {
	// 0 表示使用 TREND_TOP_N 配置的默认值
	topN := 0
	if raw := c.Query("top_n"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxTopN {
			fail(c, http.StatusBadRequest, "invalid_argument", "top_n must be between 1 and 50")
			return
		}
		topN = n
	}

	r := s.articles.GetTrending(c.Request.Context(), topN)
	ok(c, r)
}

func (s *Server) listFeeds(c *gin.Context) {
	feeds, err := s.feeds.Active(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	ok(c, gin.H{"feeds": feeds})
}

func (s *Server) availableFeeds(c *gin.Context) {
	feeds, total, err := s.feeds.Available(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	ok(c, gin.H{"feeds": feeds, "total": total})
}

type feedRequest struct {
	URL      string `json:"url"`
	Category string `json:"category"`
}

func (s *Server) hideFeed(c *gin.Context) {
	s.toggleFeed(c, s.feeds.Hide)
}

func (s *Server) unhideFeed(c *gin.Context) {
	s.toggleFeed(c, s.feeds.Unhide)
}

func (s *Server) toggleFeed(c *gin.Context, fn func(context.Context, string) error) {
	var req feedRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		fail(c, http.StatusBadRequest, "invalid_argument", "url is required")
		return
	}
	if err := fn(c.Request.Context(), req.URL); err != nil {
		fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	ok(c, gin.H{"success": true})
}

func (s *Server) addFeed(c *gin.Context) {
	var req feedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid_argument", "invalid request body")
		return
	}

	added, err := s.feeds.Add(c.Request.Context(), req.URL, req.Category)
	if err != nil {
		status := http.StatusUnprocessableEntity
		switch {
		case errors.Is(err, registry.ErrInvalidURL), errors.Is(err, registry.ErrUnknownCategory):
			status = http.StatusBadRequest
		case errors.Is(err, registry.ErrDuplicateFeed):
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{
			"code":    "add_failed",
			"message": err.Error(),
			"data":    gin.H{"success": false, "message": err.Error()},
		})
		return
	}
	ok(c, gin.H{"success": true, "message": "feed added: " + added, "url": added})
}
