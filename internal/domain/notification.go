package domain

import "time"

// NotificationKind names the event that produced a notification.
type NotificationKind string

const (
	NotificationComment NotificationKind = "comment"
	NotificationLike    NotificationKind = "like"
	NotificationFollow  NotificationKind = "follow"
	NotificationPost    NotificationKind = "post"
)

// NotificationEvent is the event name clients listen on.
const NotificationEvent = "notification"

// Notification exists only for the duration of a dispatch attempt; it is
// never persisted.
type Notification struct {
	RecipientID string           `json:"recipient_id"`
	ActorID     string           `json:"actor_id"`
	Kind        NotificationKind `json:"kind"`
	Message     string           `json:"message"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Connection is a live realtime session of a user.
type Connection struct {
	UserID       string    `json:"user_id"`
	ConnectionID string    `json:"connection_id"`
	ConnectedAt  time.Time `json:"connected_at"`
}

// Message texts, one per notification kind.
func CommentMessage(actor string) string { return actor + " commented on your post" }
func LikeMessage(actor string) string    { return actor + " liked your post" }
func FollowMessage(actor string) string  { return actor + " followed you" }
func PostMessage(actor string) string    { return actor + " created a new post" }
