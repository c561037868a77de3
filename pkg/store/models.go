package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.

type ConversationModel struct {
	ID            string `gorm:"primaryKey"`
	SessionID     string `gorm:"not null;index"`
	Title         string `gorm:"not null"`
	LastMessageAt *time.Time
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

type MessageModel struct {
	ID             string         `gorm:"primaryKey"`
	ConversationID string         `gorm:"not null;index"`
	Role           string         `gorm:"not null"`
	Content        string         `gorm:"type:text;not null"`
	Meta           datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt      time.Time      `gorm:"not null;index"`
}

type ArtifactModel struct {
	ID             string `gorm:"primaryKey"`
	ConversationID string `gorm:"not null;index"`
	StorageKey     string `gorm:"not null"`
	DownloadURL    string
	SizeBytes      int64     `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null"`
}
