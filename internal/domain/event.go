package domain

const (
	EventNameRoomStarted      = "room.started"
	EventNameRoomFinished     = "room.finished"
	EventNameForceSubmit      = "room.force_submit"
	EventNameNotificationSent = "notification.sent"
	EventNamePresenceChanged  = "presence.changed"
	EventNameRosterUpdated    = "roster.updated"
)

type EventRoomStarted struct {
	Room ExamRoom
}

func (EventRoomStarted) Name() string { return EventNameRoomStarted }

type EventRoomFinished struct {
	Room ExamRoom
}

func (EventRoomFinished) Name() string { return EventNameRoomFinished }

type EventForceSubmit struct {
	RoomID string
	UserID string
}

func (EventForceSubmit) Name() string { return EventNameForceSubmit }

type EventNotificationSent struct {
	Notification Notification
	// Recipients is empty for broadcasts.
	Recipients []string
	Broadcast  bool
}

func (EventNotificationSent) Name() string { return EventNameNotificationSent }

type EventPresenceChanged struct {
	UserID   string
	IsOnline bool
}

func (EventPresenceChanged) Name() string { return EventNamePresenceChanged }

type EventRosterUpdated struct {
	RoomID      string
	Participant Participant
}

func (EventRosterUpdated) Name() string { return EventNameRosterUpdated }
