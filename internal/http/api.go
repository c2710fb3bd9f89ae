package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"stream-resolver/internal/domain"
	"stream-resolver/internal/gateway"
	"stream-resolver/internal/link"
	"stream-resolver/internal/repository"
	"stream-resolver/internal/service"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	resolver service.ResolveService
	users    service.UserService
	history  repository.ResolutionRepository
	gw       gateway.Service

	jwtSecret []byte
	tokenTTL  time.Duration
	logger    *logrus.Logger
}

func NewHandler(
	resolver service.ResolveService,
	users service.UserService,
	history repository.ResolutionRepository,
	gw gateway.Service,
	jwtSecret string,
	tokenTTL time.Duration,
	logger *logrus.Logger,
) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		resolver:  resolver,
		users:     users,
		history:   history,
		gw:        gw,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.POST("/auth/register", h.register)
		api.POST("/auth/login", h.login)

		protected := api.Group("")
		protected.Use(h.authMiddleware())
		{
			protected.POST("/resolve", h.resolve)
			protected.POST("/convert", h.convert)
			protected.GET("/resolutions", h.listResolutions)
		}
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type registerRequest struct {
	Username       string `json:"username" binding:"required"`
	Password       string `json:"password" binding:"required"`
	RegisterSecret string `json:"register_secret" binding:"required"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Username, req.Password, req.RegisterSecret)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserAlreadyExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidRegistrationPassword):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, userResponse{ID: user.ID, Username: user.Username})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	token, err := h.issueToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  userResponse{ID: user.ID, Username: user.Username},
	})
}

func (h *Handler) issueToken(user *domain.User) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   user.Username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(h.tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.jwtSecret)
}

func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return h.jwtSecret, nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("username", claims.Subject)
		c.Next()
	}
}

func requester(c *gin.Context) string {
	return c.GetString("username")
}

type resolveRequest struct {
	Hash            string   `json:"hash" binding:"required"`
	Trackers        []string `json:"trackers"`
	Season          int      `json:"season"`
	Episode         int      `json:"episode"`
	AbsoluteEpisode int      `json:"absolute_episode"`
	FileName        string   `json:"file_name"`
	FileIndex       *int     `json:"file_index"`
	Title           string   `json:"title"`
	Wait            bool     `json:"wait"`
}

type resolveResponse struct {
	URL   string `json:"url,omitempty"`
	Ready bool   `json:"ready"`
}

func (h *Handler) resolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.resolver.Resolve(c.Request.Context(), domain.PlaybackRequest{
		Hash:            req.Hash,
		Trackers:        req.Trackers,
		Season:          req.Season,
		Episode:         req.Episode,
		AbsoluteEpisode: req.AbsoluteEpisode,
		FileName:        req.FileName,
		FileIndex:       req.FileIndex,
		RequestedTitle:  req.Title,
		Wait:            req.Wait,
		Requester:       requester(c),
	})
	if err != nil {
		h.logger.WithError(err).WithField("hash", req.Hash).Warn("resolve failed")
		c.JSON(resolveStatus(err), gin.H{"error": err.Error()})
		return
	}

	if !res.Ready {
		c.JSON(http.StatusAccepted, resolveResponse{Ready: false})
		return
	}
	c.JSON(http.StatusOK, resolveResponse{URL: res.URL, Ready: true})
}

func resolveStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.KindBadRequest):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.KindNoMatchingFile):
		return http.StatusNotFound
	case domain.IsKind(err, domain.KindUnsupported):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.KindUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type convertRequest struct {
	Hash      string `json:"hash" binding:"required"`
	FileIndex *int   `json:"file_index"`
}

// convert templates a stream URL without contacting the gateway. It is the
// cheap path for callers that already know the content is present.
func (h *Handler) convert(c *gin.Context) {
	var req convertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := link.NormalizeHash(req.Hash)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	index := link.BlindIndex
	if req.FileIndex != nil {
		index = *req.FileIndex
	}

	playURL, err := h.gw.StreamURL(hash, index)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": playURL})
}

type resolutionResponse struct {
	ID              int64  `json:"id"`
	Hash            string `json:"hash"`
	Requester       string `json:"requester"`
	Season          int    `json:"season,omitempty"`
	Episode         int    `json:"episode,omitempty"`
	AbsoluteEpisode int    `json:"absolute_episode,omitempty"`
	FileIndex       int    `json:"file_index"`
	FilePath        string `json:"file_path,omitempty"`
	URL             string `json:"url"`
	CreatedAt       string `json:"created_at"`
}

func (h *Handler) listResolutions(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}

	var (
		records []domain.ResolutionRecord
		err     error
	)
	if c.Query("mine") == "true" {
		records, err = h.history.ListByRequester(c.Request.Context(), requester(c), limit)
	} else {
		records, err = h.history.List(c.Request.Context(), limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]resolutionResponse, len(records))
	for i, rec := range records {
		resp[i] = resolutionResponse{
			ID:              rec.ID,
			Hash:            rec.Hash,
			Requester:       rec.Requester,
			Season:          rec.Season,
			Episode:         rec.Episode,
			AbsoluteEpisode: rec.AbsoluteEpisode,
			FileIndex:       rec.FileIndex,
			FilePath:        rec.FilePath,
			URL:             rec.URL,
			CreatedAt:       rec.CreatedAt.Format(time.RFC3339),
		}
	}
	c.JSON(http.StatusOK, resp)
}
