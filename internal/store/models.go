package store

import "time"

// Session is one stored conversation.
type Session struct {
	ID        string    `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	Title     string    `gorm:"column:title;type:varchar(255)" json:"title"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// StoredMessage is one persisted conversation turn. Body holds the
// message encoded as JSON, with image payloads redacted.
type StoredMessage struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	SessionID string    `gorm:"column:session_id;type:varchar(36);not null;index:idx_messages_session_id" json:"session_id"`
	Role      string    `gorm:"column:role;type:varchar(16);not null" json:"role"`
	Body      string    `gorm:"column:body;type:text;not null" json:"body"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
