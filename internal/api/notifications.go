package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vimaru/luyenthi/internal/auth"
	"github.com/vimaru/luyenthi/internal/domain"
	"github.com/vimaru/luyenthi/internal/errors"
	"github.com/vimaru/luyenthi/internal/notification"
)

type sendNotificationRequest struct {
	Title      string                  `json:"title" binding:"required"`
	Message    string                  `json:"message" binding:"required"`
	Type       domain.NotificationType `json:"type" binding:"required,oneof=system class personal reminder special attention"`
	TargetType domain.TargetType       `json:"target_type" binding:"required,oneof=all class user"`
	TargetID   string                  `json:"target_id"`
	ExpireTime *time.Time              `json:"expire_time"`
}

func (a *API) sendNotification(c *gin.Context) {
	var req sendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	claims := currentClaims(c)
	caps := auth.CapabilitiesFor(claims.Role)

	// Broadcasts and class sends are a staff action; anyone may send
	// a personal notification.
	if req.TargetType != domain.TargetUser && !caps.CanSendBroadcast {
		renderError(c, errors.New(errors.CodePermissionDenied, errors.WithMessagef("role lacks access")))
		return
	}

	if req.TargetType != domain.TargetAll && req.TargetID == "" {
		renderError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("target_id is required")))
		return
	}

	n, err := a.notifs.Send(c.Request.Context(), notification.SendRequest{
		Title:      req.Title,
		Message:    req.Message,
		Type:       req.Type,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		SenderID:   claims.UserID,
		SenderName: claims.Name,
		ExpireTime: req.ExpireTime,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	renderJSON(c, n)
}

type notificationView struct {
	ID         string                  `json:"id"`
	Ref        domain.NotificationRef  `json:"ref"`
	Title      string                  `json:"title"`
	Message    string                  `json:"message"`
	Type       domain.NotificationType `json:"type"`
	SenderName string                  `json:"sender_name"`
	CreateTime time.Time               `json:"create_time"`
	ExpireTime *time.Time              `json:"expire_time,omitempty"`
	Read       bool                    `json:"read"`
}

// listNotifications returns the caller's inbox plus the marquee and
// popup candidates in one fetch; clients poll this on mount, every
// five minutes, and on a relay refresh nudge.
func (a *API) listNotifications(c *gin.Context) {
	claims := currentClaims(c)

	items, err := a.notifs.ListForUser(c.Request.Context(), claims.UserID)
	if err != nil {
		renderError(c, err)
		return
	}

	now := time.Now()

	views := make([]notificationView, 0, len(items))
	for _, n := range items {
		views = append(views, notificationView{
			ID:         n.ID,
			Ref:        n.Ref,
			Title:      n.Title,
			Message:    n.Message,
			Type:       n.Type,
			SenderName: n.SenderName,
			CreateTime: n.CreateTime,
			ExpireTime: n.ExpireTime,
			Read:       n.Read,
		})
	}

	resp := gin.H{
		"notifications": views,
		"marquee":       notification.MarqueeEligible(items, now),
	}
	if popup := notification.PickPopup(items, now); popup != nil {
		resp["popup"] = popup
	}

	renderJSON(c, resp)
}

type notificationRefRequest struct {
	Ref domain.NotificationRef `json:"ref" binding:"required"`
}

func (a *API) markRead(c *gin.Context) {
	var req notificationRefRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	claims := currentClaims(c)
	if err := a.notifs.MarkRead(c.Request.Context(), req.Ref, claims.UserID); err != nil {
		renderError(c, err)
		return
	}

	renderJSON(c, gin.H{"status": "ok"})
}

func (a *API) deleteNotification(c *gin.Context) {
	var req notificationRefRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	claims := currentClaims(c)
	if err := a.notifs.Delete(c.Request.Context(), req.Ref, claims.UserID); err != nil {
		renderError(c, err)
		return
	}

	renderJSON(c, gin.H{"status": "ok"})
}
