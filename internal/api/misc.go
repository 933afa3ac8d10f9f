package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vimaru/luyenthi/internal/chat"
	"github.com/vimaru/luyenthi/internal/domain"
	"github.com/vimaru/luyenthi/internal/errors"
	"github.com/vimaru/luyenthi/internal/quiz"
	"github.com/vimaru/luyenthi/internal/usage"
)

// resolveTier maps the caller to a usage tier. Unauthenticated callers
// are guests; an authenticated caller without a stored profile falls
// back to the claims' role alone.
func (a *API) resolveTier(c *gin.Context) (string, usage.Tier) {
	claims := currentClaims(c)
	if claims == nil {
		return "", usage.TierGuest
	}

	profile, err := a.users.GetProfile(c.Request.Context(), claims.UserID)
	if err != nil {
		profile = &domain.UserProfile{UserID: claims.UserID, Role: claims.Role}
	}

	return claims.UserID, usage.ResolveTier(profile)
}

func (a *API) checkUsage(c *gin.Context) {
	userID, tier := a.resolveTier(c)
	if userID == "" {
		// Guests are tracked per device via a client-supplied key.
		userID = "device:" + c.Query("device_id")
	}

	verdict, err := a.usage.Check(c.Request.Context(), userID, tier)
	if err != nil {
		renderError(c, err)
		return
	}

	renderJSON(c, verdict)
}

func (a *API) incrementUsage(c *gin.Context) {
	userID, tier := a.resolveTier(c)
	if userID == "" {
		userID = "device:" + c.Query("device_id")
	}

	if err := a.usage.Increment(c.Request.Context(), userID, tier); err != nil {
		renderError(c, err)
		return
	}

	renderJSON(c, gin.H{"status": "ok"})
}

func (a *API) loadSnapshot(c *gin.Context) {
	claims := currentClaims(c)

	snap, err := a.snapshots.Load(c.Request.Context(), claims.UserID, c.Param("mode"))
	if err != nil {
		renderError(c, err)
		return
	}

	if snap == nil {
		renderJSON(c, gin.H{"session": nil})
		return
	}

	renderJSON(c, gin.H{"session": snap})
}

func (a *API) saveSnapshot(c *gin.Context) {
	var snap quiz.Snapshot
	if err := c.ShouldBindJSON(&snap); err != nil {
		renderError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	claims := currentClaims(c)
	if err := a.snapshots.Save(c.Request.Context(), claims.UserID, c.Param("mode"), snap); err != nil {
		renderError(c, err)
		return
	}

	renderJSON(c, gin.H{"status": "ok"})
}

func (a *API) clearSnapshot(c *gin.Context) {
	claims := currentClaims(c)
	if err := a.snapshots.Clear(c.Request.Context(), claims.UserID, c.Param("mode")); err != nil {
		renderError(c, err)
		return
	}

	renderJSON(c, gin.H{"status": "ok"})
}

func (a *API) chatHistory(c *gin.Context) {
	claims := currentClaims(c)

	var before time.Time
	if v := c.Query("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			renderError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid before timestamp")))
			return
		}
		before = t
	}

	msgs, err := a.chat.History(c.Request.Context(), chat.HistoryRequest{
		UserID: claims.UserID,
		PeerID: c.Param("peer"),
		Before: before,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	renderJSON(c, gin.H{"messages": msgs})
}

type analyticsRequest struct {
	DateRange string `json:"dateRange" binding:"required"`
}

func (a *API) fetchAnalytics(c *gin.Context) {
	var req analyticsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	report, err := a.analytics.Fetch(c.Request.Context(), req.DateRange)
	if err != nil {
		renderError(c, err)
		return
	}

	renderJSON(c, report)
}
