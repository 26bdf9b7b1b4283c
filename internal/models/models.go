package models

import "time"

// Message kinds as stored in the messages table.
const (
	KindText  = "text"
	KindImage = "image"
	KindVideo = "video"
	KindAudio = "audio"
	KindFile  = "file"
)

// Message is a persisted chat message row. Content holds the literal text for
// KindText and a blob key for every other kind.
type Message struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Author    string    `gorm:"index;not null" json:"author"`
	AvatarRef string    `json:"avatar_ref,omitempty"`
	Kind      string    `gorm:"not null" json:"kind"`
	Content   string    `json:"content"`
	ThumbRef  string    `json:"thumb_ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// IsMedia reports whether Content is a blob key rather than literal text.
func (m *Message) IsMedia() bool { return m.Kind != KindText }

// UserPresence is a heartbeat row, one per active user.
type UserPresence struct {
	Username      string    `gorm:"primaryKey" json:"username"`
	AvatarRef     string    `json:"avatar_ref,omitempty"`
	LastHeartbeat time.Time `gorm:"index" json:"last_heartbeat"`
}

// Alert is a system notice (join/leave) shown to every viewer.
type Alert struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Text      string    `gorm:"not null" json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// AlertDismissal records that a single viewer hid an alert. The alert stays
// visible for everyone else until an owner purges it.
type AlertDismissal struct {
	AlertID uint64 `gorm:"primaryKey;autoIncrement:false" json:"alert_id"`
	Viewer  string `gorm:"primaryKey" json:"viewer"`
}

// BlobRef counts live message references to a content-addressed blob key.
// The underlying object is removed only when the count reaches zero.
type BlobRef struct {
	Key   string `gorm:"primaryKey" json:"key"`
	Count int64  `gorm:"not null" json:"count"`
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{&Message{}, &UserPresence{}, &Alert{}, &AlertDismissal{}, &BlobRef{}}
}
