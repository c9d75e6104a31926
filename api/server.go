package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"bookclub-catalog/catalog"
)

// Catalog is the part of catalog.CatalogManager the HTTP surface needs.
type Catalog interface {
	Login(login, password string) *catalog.Session
	Browse(sess *catalog.Session, search string) ([]*catalog.Book, error)
	BookByArticle(article string) *catalog.Book
}

type Server struct {
	catalog Catalog
	covers  *catalog.CoverCache
	tokens  *TokenIssuer
	router  *gin.Engine
}

// NewServer wires routes over the catalog. covers may be nil, in which case
// the cover endpoint always answers 404.
func NewServer(c Catalog, covers *catalog.CoverCache, tokens *TokenIssuer) *Server {
	s := &Server{
		catalog: c,
		covers:  covers,
		tokens:  tokens,
		router:  gin.New(),
	}
	s.router.Use(gin.Recovery(), requestLogger())
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := s.router.Group("/api/auth")
	auth.POST("/login", s.login)
	auth.POST("/guest", s.guest)

	books := s.router.Group("/api", s.withSession())
	books.GET("/books", s.listBooks)
	books.GET("/books/:article", s.getBook)
	books.GET("/covers/:article", s.getCover)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run listens on addr until the listener fails.
func (s *Server) Run(addr string) error {
	logrus.Infof("Starting server on %s", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

const sessionKey = "session"

func requestLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		id := ctx.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		ctx.Header("X-Request-ID", id)
		ctx.Next()
		logrus.WithFields(logrus.Fields{
			"request_id": id,
			"method":     ctx.Request.Method,
			"path":       ctx.FullPath(),
			"status":     ctx.Writer.Status(),
			"duration":   time.Since(start),
		}).Debug("request handled")
	}
}

func (s *Server) withSession() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			errorResponse(ctx, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := s.tokens.Parse(token)
		if err != nil {
			logrus.WithError(err).Debug("token rejected")
			errorResponse(ctx, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx.Set(sessionKey, claims.Session())
		ctx.Next()
	}
}

func sessionFrom(ctx *gin.Context) *catalog.Session {
	if v, ok := ctx.Get(sessionKey); ok {
		if sess, ok := v.(*catalog.Session); ok {
			return sess
		}
	}
	return catalog.GuestSession()
}

func errorResponse(ctx *gin.Context, status int, msg string) {
	ctx.AbortWithStatusJSON(status, gin.H{
		"status":      "error",
		"description": msg,
	})
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

type loginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type sessionResponse struct {
	Token string        `json:"token"`
	User  *catalog.User `json:"user"`
}

func (s *Server) login(ctx *gin.Context) {
	var req loginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		errorResponse(ctx, http.StatusBadRequest, "login and password are required")
		return
	}
	sess := s.catalog.Login(strings.TrimSpace(req.Login), strings.TrimSpace(req.Password))
	if sess == nil {
		errorResponse(ctx, http.StatusUnauthorized, "invalid credentials")
		return
	}
	s.issue(ctx, sess)
}

func (s *Server) guest(ctx *gin.Context) {
	s.issue(ctx, catalog.GuestSession())
}

func (s *Server) issue(ctx *gin.Context, sess *catalog.Session) {
	token, err := s.tokens.Issue(sess)
	if err != nil {
		logrus.WithError(err).Error("issue token")
		errorResponse(ctx, http.StatusInternalServerError, "could not create session")
		return
	}
	ctx.JSON(http.StatusOK, sessionResponse{Token: token, User: sess.User})
}

type bookView struct {
	*catalog.Book
	EffectivePrice float64 `json:"effective_price"`
	InStock        bool    `json:"in_stock"`
	CoverURL       string  `json:"cover_url"`
}

func newBookView(b *catalog.Book) bookView {
	return bookView{
		Book:           b,
		EffectivePrice: b.EffectivePrice(),
		InStock:        b.InStock(),
		CoverURL:       "/api/covers/" + b.Article,
	}
}

func (s *Server) listBooks(ctx *gin.Context) {
	books, err := s.catalog.Browse(sessionFrom(ctx), ctx.Query("query"))
	if errors.Is(err, catalog.ErrSearchDisabled) {
		errorResponse(ctx, http.StatusForbidden, err.Error())
		return
	}
	views := make([]bookView, 0, len(books))
	for _, b := range books {
		views = append(views, newBookView(b))
	}
	ctx.JSON(http.StatusOK, views)
}

func (s *Server) getBook(ctx *gin.Context) {
	b := s.catalog.BookByArticle(ctx.Param("article"))
	if b == nil {
		errorResponse(ctx, http.StatusNotFound, "book not found")
		return
	}
	ctx.JSON(http.StatusOK, newBookView(b))
}

func (s *Server) getCover(ctx *gin.Context) {
	if s.covers == nil {
		errorResponse(ctx, http.StatusNotFound, "cover not found")
		return
	}
	asset, err := s.covers.Cover(ctx.Param("article"))
	if errors.Is(err, catalog.ErrCoverNotFound) {
		errorResponse(ctx, http.StatusNotFound, "cover not found")
		return
	}
	if err != nil {
		logrus.WithError(err).WithField("article", ctx.Param("article")).Error("load cover")
		errorResponse(ctx, http.StatusInternalServerError, "could not load cover")
		return
	}
	ctx.Header("Cache-Control", "public, max-age=3600")
	ctx.Data(http.StatusOK, asset.ContentType, asset.Data)
}
