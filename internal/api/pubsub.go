package api

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/vimaru/luyenthi/internal/domain"
	"github.com/vimaru/luyenthi/internal/relay"
)

const maxConcurrent = 100

func (a *API) publishRoomStatus(ctx context.Context, room domain.ExamRoom) error {
	return a.hub.Broadcast(ctx, relay.EventRoomStatusChange, relay.RoomStatusPayload{
		RoomID: room.RoomID,
		Status: string(room.Status),
	})
}

func (a *API) publishForceSubmit(ctx context.Context, e domain.EventForceSubmit) error {
	return a.hub.Publish(ctx, e.UserID, relay.EventForceSubmit, relay.ForceSubmitPayload{
		RoomID: e.RoomID,
	})
}

// publishNotification nudges recipients to refetch their inbox. The
// relay carries the headline only; the inbox fetch is the source of
// truth.
func (a *API) publishNotification(ctx context.Context, e domain.EventNotificationSent) error {
	payload := relay.NotificationPayload{
		Title:     e.Notification.Title,
		Body:      e.Notification.Message,
		SenderID:  e.Notification.SenderID,
		Broadcast: e.Broadcast,
	}

	if e.Broadcast {
		return a.hub.Broadcast(ctx, relay.EventReceiveNotification, payload)
	}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, uid := range e.Recipients {
		uid := uid
		eg.Go(func() error {
			return a.hub.Publish(ctx, uid, relay.EventReceiveNotification, payload)
		})
	}

	return eg.Wait()
}
