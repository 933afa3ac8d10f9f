package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vimaru/luyenthi/internal/analytics"
	"github.com/vimaru/luyenthi/internal/auth"
	"github.com/vimaru/luyenthi/internal/catalog"
	"github.com/vimaru/luyenthi/internal/chat"
	"github.com/vimaru/luyenthi/internal/domain"
	"github.com/vimaru/luyenthi/internal/errors"
	"github.com/vimaru/luyenthi/internal/event"
	"github.com/vimaru/luyenthi/internal/examroom"
	"github.com/vimaru/luyenthi/internal/notification"
	"github.com/vimaru/luyenthi/internal/quiz"
	"github.com/vimaru/luyenthi/internal/relay"
	"github.com/vimaru/luyenthi/internal/usage"
	"github.com/vimaru/luyenthi/internal/users"
)

type Config struct {
	Router   *gin.Engine
	EventBus *event.Bus
	Hub      *relay.Hub

	Auth         *auth.Service
	Catalog      *catalog.Service
	ExamRoom     *examroom.Service
	Roster       *examroom.Roster
	Notification *notification.Service
	Usage        *usage.Service
	Users        *users.Service
	Chat         *chat.Service
	Snapshots    *quiz.SnapshotStore
	Analytics    *analytics.Service
}

type API struct {
	auth      *auth.Service
	catalog   *catalog.Service
	rooms     *examroom.Service
	roster    *examroom.Roster
	notifs    *notification.Service
	usage     *usage.Service
	users     *users.Service
	chat      *chat.Service
	snapshots *quiz.SnapshotStore
	analytics *analytics.Service
	hub       *relay.Hub
}

func New(c Config) *API {
	a := &API{
		auth:      c.Auth,
		catalog:   c.Catalog,
		rooms:     c.ExamRoom,
		roster:    c.Roster,
		notifs:    c.Notification,
		usage:     c.Usage,
		users:     c.Users,
		chat:      c.Chat,
		snapshots: c.Snapshots,
		analytics: c.Analytics,
		hub:       c.Hub,
	}

	a.registerRoutes(c.Router)

	// Domain events fan out to connected clients through the relay.
	c.EventBus.Subscribe(domain.EventNameRoomStarted, func(ctx context.Context, e event.Event) error {
		return a.publishRoomStatus(ctx, e.(domain.EventRoomStarted).Room)
	})
	c.EventBus.Subscribe(domain.EventNameRoomFinished, func(ctx context.Context, e event.Event) error {
		return a.publishRoomStatus(ctx, e.(domain.EventRoomFinished).Room)
	})
	c.EventBus.Subscribe(domain.EventNameForceSubmit, func(ctx context.Context, e event.Event) error {
		return a.publishForceSubmit(ctx, e.(domain.EventForceSubmit))
	})
	c.EventBus.Subscribe(domain.EventNameNotificationSent, func(ctx context.Context, e event.Event) error {
		return a.publishNotification(ctx, e.(domain.EventNotificationSent))
	})

	return a
}

func (a *API) registerRoutes(r *gin.Engine) {
	r.GET("/ws", gin.WrapF(a.hub.ServeWS))

	api := r.Group("/api")

	api.GET("/licenses", a.listLicenses)
	api.GET("/licenses/:id", a.getLicense)
	api.GET("/licenses/:id/questions", a.listLicenseQuestions)
	api.GET("/subjects/:id/questions", a.listSubjectQuestions)
	api.GET("/thi/:licenseId", a.issueExam)

	api.POST("/analytics", a.requireAuth, a.requireCapability(func(c auth.Capabilities) bool { return c.CanViewAnalytics }), a.fetchAnalytics)

	rooms := api.Group("/rooms")
	rooms.POST("", a.requireAuth, a.requireCapability(func(c auth.Capabilities) bool { return c.CanManageRooms }), a.createRoom)
	rooms.GET("/:id", a.requireAuth, a.getRoom)
	rooms.POST("/:id/start", a.requireAuth, a.requireCapability(func(c auth.Capabilities) bool { return c.CanManageRooms }), a.startExam)
	rooms.POST("/:id/finish", a.requireAuth, a.requireCapability(func(c auth.Capabilities) bool { return c.CanManageRooms }), a.finishExam)
	rooms.GET("/:id/roster", a.requireAuth, a.listRoster)
	rooms.POST("/:id/join", a.requireAuth, a.joinRoom)
	rooms.POST("/:id/progress", a.requireAuth, a.updateProgress)
	rooms.POST("/:id/submit", a.requireAuth, a.submitResult)
	rooms.DELETE("/:id/participants/:uid", a.requireAuth, a.requireCapability(func(c auth.Capabilities) bool { return c.CanKick }), a.kickParticipant)
	rooms.POST("/:id/participants/:uid/force-submit", a.requireAuth, a.requireCapability(func(c auth.Capabilities) bool { return c.CanKick }), a.forceSubmit)

	notifs := api.Group("/notifications")
	notifs.POST("", a.requireAuth, a.sendNotification)
	notifs.GET("", a.requireAuth, a.listNotifications)
	notifs.POST("/read", a.requireAuth, a.markRead)
	notifs.POST("/delete", a.requireAuth, a.deleteNotification)

	api.GET("/usage", a.optionalAuth, a.checkUsage)
	api.POST("/usage/increment", a.optionalAuth, a.incrementUsage)

	api.GET("/session/:mode", a.requireAuth, a.loadSnapshot)
	api.PUT("/session/:mode", a.requireAuth, a.saveSnapshot)
	api.DELETE("/session/:mode", a.requireAuth, a.clearSnapshot)

	api.GET("/chat/:peer", a.requireAuth, a.chatHistory)
}

const claimsKey = "auth.claims"

// requireAuth rejects requests without a valid bearer token.
func (a *API) requireAuth(c *gin.Context) {
	claims, err := a.auth.ParseToken(auth.ExtractBearer(c.GetHeader("Authorization")))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Set(claimsKey, claims)
	c.Next()
}

// optionalAuth resolves the caller when a token is present; anonymous
// callers continue as guests.
func (a *API) optionalAuth(c *gin.Context) {
	token := auth.ExtractBearer(c.GetHeader("Authorization"))
	if token == "" {
		c.Next()
		return
	}

	claims, err := a.auth.ParseToken(token)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Set(claimsKey, claims)
	c.Next()
}

func (a *API) requireCapability(allowed func(auth.Capabilities) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := currentClaims(c)
		if claims == nil || !allowed(auth.CapabilitiesFor(claims.Role)) {
			abortWithError(c, errors.New(errors.CodePermissionDenied,
				errors.WithMessagef("role lacks access")))
			return
		}

		c.Next()
	}
}

func currentClaims(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}

	claims, _ := v.(*auth.Claims)
	return claims
}

func abortWithError(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"route", c.FullPath(),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), gin.H{"error": e})
}

func renderError(c *gin.Context, err error) {
	abortWithError(c, err)
}

func renderJSON(c *gin.Context, v any) {
	c.JSON(http.StatusOK, v)
}
