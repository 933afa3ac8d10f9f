// Package relay brokers direct messages, typing signals and broadcast
// notifications between connected clients over websockets. Delivery is
// at-most-once and best-effort: the durable chat log, not the relay,
// is the source of truth for history. Cross-node delivery rides Redis
// pubsub on per-user channels, so every device of one user receives
// the same stream regardless of which node it connected to.
package relay

import "encoding/json"

// Envelope is the wire frame for every relay event, both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	// AckID is echoed back on the ack frame when the client sets it.
	AckID int64 `json:"ack_id,omitempty"`
}

// Client -> server events.
const (
	EventSendMessage           = "send_message"
	EventTyping                = "typing"
	EventStopTyping            = "stop_typing"
	EventSendNotification      = "send_notification"
	EventBroadcastNotification = "broadcast_notification"
	EventDeleteMessage         = "delete_message"
)

// Server -> client events.
const (
	EventAck                  = "ack"
	EventReceiveMessage       = "receive_message"
	EventUserTyping           = "user_typing"
	EventUserStopTyping       = "user_stop_typing"
	EventReceiveNotification  = "receive_notification"
	EventDeleteMessageSuccess = "delete_message_success"
	EventUserStatusChange     = "user_status_change"
	EventForceSubmit          = "force_submit"
	EventRoomStatusChange     = "room_status_change"
)

type SendMessagePayload struct {
	To      string `json:"to"`
	Content string `json:"content"`
}

type AckPayload struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
	Error  string `json:"error,omitempty"`
}

type ReceiveMessagePayload struct {
	ID        string `json:"id"`
	SenderID  string `json:"senderId"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

type TypingPayload struct {
	To string `json:"to"`
}

type UserTypingPayload struct {
	SenderID string `json:"senderId"`
}

type NotificationPayload struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Link      string `json:"link,omitempty"`
	SenderID  string `json:"senderId,omitempty"`
	Broadcast bool   `json:"broadcast,omitempty"`
}

type DeleteMessagePayload struct {
	ID string `json:"id"`
}

type StatusChangePayload struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

type ForceSubmitPayload struct {
	RoomID string `json:"roomId"`
}

type RoomStatusPayload struct {
	RoomID string `json:"roomId"`
	Status string `json:"status"`
}
