package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"news_crawler/internal/domain"
	"news_crawler/internal/notify"
)

// pageSize is the fixed number of articles per list page.
const pageSize = 10

// maxPageIndex bounds the index query parameter so the page offset can
// never overflow into a negative database OFFSET.
const maxPageIndex = 1_000_000

// keepaliveInterval is how long the notification stream waits for an event
// before emitting a comment frame to keep the connection open.
const keepaliveInterval = time.Second

type ArticleReader interface {
	ListPage(ctx context.Context, offset, limit int) ([]domain.Article, error)
	GetByExternalIndex(ctx context.Context, externalIndex int64) (*domain.Article, error)
}

type PageCache interface {
	GetPage(ctx context.Context, index int) ([]byte, bool, error)
	SetPage(ctx context.Context, index int, payload []byte) error
}

type EventStream interface {
	Register() (int64, <-chan notify.Event)
	Unregister(id int64)
}

// Answerer answers a reader's question grounded on one article. Failures
// come back as sentinel strings, same as the other model calls.
type Answerer interface {
	Answer(ctx context.Context, title, content, question string) string
}

type Handler struct {
	articles ArticleReader
	cache    PageCache
	stream   EventStream
	answerer Answerer
	logger   *slog.Logger
}

func NewHandler(articles ArticleReader, cache PageCache, stream EventStream, answerer Answerer, logger *slog.Logger) *Handler {
	return &Handler{
		articles: articles,
		cache:    cache,
		stream:   stream,
		answerer: answerer,
		logger:   logger.With("component", "api"),
	}
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), corsMiddleware())

	r.GET("/", h.Welcome)
	r.GET("/articles", h.ListArticles)
	r.GET("/articles/initial", h.InitialArticles)
	r.GET("/article/:id", h.ArticleDetail)
	r.POST("/articles/:id/ask", h.AskArticle)
	r.GET("/news-notifications", h.StreamNotifications)

	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "*")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// articleView is the list/detail wire shape. The id field carries the
// external index, not the surrogate key.
type articleView struct {
	Title   string `json:"title"`
	ID      int64  `json:"id"`
	Content string `json:"content"`
	Tag     string `json:"tag"`
	URL     string `json:"url"`
}

func toView(a domain.Article) articleView {
	return articleView{
		Title:   a.Title,
		ID:      a.ExternalIndex,
		Content: a.Content,
		Tag:     a.Tags,
		URL:     a.URL,
	}
}

func (h *Handler) Welcome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "welcome modeep"})
}

// ListArticles: GET /articles?index=N
// Page N (0-based) of articles, newest external index first.
func (h *Handler) ListArticles(c *gin.Context) {
	index, err := strconv.Atoi(c.DefaultQuery("index", "0"))
	if err != nil || index < 0 || index > maxPageIndex {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid index parameter"})
		return
	}

	ctx := c.Request.Context()

	if h.cache != nil {
		if payload, ok, err := h.cache.GetPage(ctx, index); err != nil {
			h.logger.Warn("page cache read failed", "index", index, "error", err)
		} else if ok {
			c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
			return
		}
	}

	articles, err := h.articles.ListPage(ctx, index*pageSize, pageSize)
	if err != nil {
		h.logger.Error("list articles failed", "index", index, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load articles"})
		return
	}

	views := make([]articleView, 0, len(articles))
	for _, a := range articles {
		views = append(views, toView(a))
	}

	payload, err := json.Marshal(views)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode articles"})
		return
	}

	if h.cache != nil {
		if err := h.cache.SetPage(ctx, index, payload); err != nil {
			h.logger.Warn("page cache write failed", "index", index, "error", err)
		}
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

// InitialArticles: GET /articles/initial
// First page without touching the cache, for initial page loads.
func (h *Handler) InitialArticles(c *gin.Context) {
	articles, err := h.articles.ListPage(c.Request.Context(), 0, pageSize)
	if err != nil {
		h.logger.Error("initial articles failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load articles"})
		return
	}

	views := make([]articleView, 0, len(articles))
	for _, a := range articles {
		views = append(views, toView(a))
	}
	c.JSON(http.StatusOK, views)
}

// ArticleDetail: GET /article/:id
// Looks the article up by its external index.
func (h *Handler) ArticleDetail(c *gin.Context) {
	externalIndex, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid article id"})
		return
	}

	article, err := h.articles.GetByExternalIndex(c.Request.Context(), externalIndex)
	if err != nil {
		h.logger.Error("article detail failed", "external_index", externalIndex, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load article"})
		return
	}
	if article == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "해당 기사를 찾을 수 없습니다."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"title":   article.Title,
		"content": article.Content,
		"tags":    article.Tags,
		"url":     article.URL,
	})
}

// AskArticle: POST /articles/:id/ask?question=...
// Answers a reader's question about the article stored for that external
// index.
func (h *Handler) AskArticle(c *gin.Context) {
	externalIndex, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid article id"})
		return
	}

	question := c.Query("question")
	if question == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing question parameter"})
		return
	}

	article, err := h.articles.GetByExternalIndex(c.Request.Context(), externalIndex)
	if err != nil {
		h.logger.Error("ask article lookup failed", "external_index", externalIndex, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load article"})
		return
	}
	if article == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "기사 정보를 찾을 수 없습니다."})
		return
	}

	answer := h.answerer.Answer(c.Request.Context(), article.Title, article.Content, question)
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

// StreamNotifications: GET /news-notifications
// Server-sent event stream. Emits a connected acknowledgement, then data
// frames as articles land and keepalive comments in between. The loop exits
// only on client disconnect or when the hub drops this listener.
func (h *Handler) StreamNotifications(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	id, events := h.stream.Register()
	defer h.stream.Unregister(id)

	if err := writeEventFrame(c.Writer, notify.ConnectedEvent()); err != nil {
		return
	}
	c.Writer.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeEventFrame(c.Writer, event); err != nil {
				return
			}
			c.Writer.Flush()
		case <-keepalive.C:
			if _, err := fmt.Fprint(c.Writer, ": keepalive\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}

func writeEventFrame(w io.Writer, event notify.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
