package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"briefly/pkg/domain"
)

const migrateLockID int64 = 48104810

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&ConversationModel{}, &MessageModel{}, &ArtifactModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// CreateConversation stores or updates a conversation.
func (s *GormStore) CreateConversation(c domain.Conversation) error {
	model := conversationToModel(c)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "last_message_at", "updated_at"}),
	}).Create(&model).Error
}

// GetConversation returns a conversation by ID.
func (s *GormStore) GetConversation(id string) (domain.Conversation, bool, error) {
	var model ConversationModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Conversation{}, false, nil
		}
		return domain.Conversation{}, false, err
	}
	return conversationFromModel(model), true, nil
}

// ListConversationsBySession returns a session's conversations,
// newest first.
func (s *GormStore) ListConversationsBySession(sessionID string, limit int) ([]domain.Conversation, error) {
	var models []ConversationModel
	tx := s.db.Where("session_id = ?", sessionID).Order("created_at DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Conversation, 0, len(models))
	for _, m := range models {
		res = append(res, conversationFromModel(m))
	}
	return res, nil
}

// UpdateConversation sets an optional title and the last message time.
func (s *GormStore) UpdateConversation(id string, title string, lastMessageAt time.Time) error {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if title != "" {
		updates["title"] = title
	}
	if !lastMessageAt.IsZero() {
		updates["last_message_at"] = lastMessageAt
	}
	return s.db.Model(&ConversationModel{}).Where("id = ?", id).Updates(updates).Error
}

// DeleteConversation removes a conversation and its messages.
func (s *GormStore) DeleteConversation(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&MessageModel{}, "conversation_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&ConversationModel{}, "id = ?", id).Error
	})
}

// AppendMessage records a message linked to a conversation.
func (s *GormStore) AppendMessage(conversationID string, msg domain.Message) error {
	msg.ConversationID = conversationID
	model, err := messageToModel(msg)
	if err != nil {
		return err
	}
	return s.db.Create(&model).Error
}

// ListMessages returns messages in chronological order.
// A positive limit keeps the most recent messages.
func (s *GormStore) ListMessages(conversationID string, limit int) ([]domain.Message, error) {
	var models []MessageModel
	tx := s.db.Where("conversation_id = ?", conversationID).Order("created_at DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Message, 0, len(models))
	for i := len(models) - 1; i >= 0; i-- {
		msg, err := messageFromModel(models[i])
		if err != nil {
			return nil, err
		}
		res = append(res, msg)
	}
	return res, nil
}

// SaveArtifact records an export artifact.
func (s *GormStore) SaveArtifact(a domain.Artifact) error {
	model := artifactToModel(a)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"storage_key", "download_url", "size_bytes"}),
	}).Create(&model).Error
}

// GetArtifact returns an artifact by ID.
func (s *GormStore) GetArtifact(id string) (domain.Artifact, bool, error) {
	var model ArtifactModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Artifact{}, false, nil
		}
		return domain.Artifact{}, false, err
	}
	return artifactFromModel(model), true, nil
}

// DeleteArtifactsByConversation removes a conversation's artifact records
// and returns them so callers can clean up the backing objects.
func (s *GormStore) DeleteArtifactsByConversation(conversationID string) ([]domain.Artifact, error) {
	var models []ArtifactModel
	if err := s.db.Where("conversation_id = ?", conversationID).Find(&models).Error; err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	if err := s.db.Where("conversation_id = ?", conversationID).Delete(&ArtifactModel{}).Error; err != nil {
		return nil, err
	}
	removed := make([]domain.Artifact, 0, len(models))
	for _, model := range models {
		removed = append(removed, artifactFromModel(model))
	}
	return removed, nil
}

func conversationToModel(c domain.Conversation) ConversationModel {
	return ConversationModel{
		ID:            c.ID,
		SessionID:     c.SessionID,
		Title:         c.Title,
		LastMessageAt: c.LastMessageAt,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func conversationFromModel(m ConversationModel) domain.Conversation {
	return domain.Conversation{
		ID:            m.ID,
		SessionID:     m.SessionID,
		Title:         m.Title,
		LastMessageAt: m.LastMessageAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func messageToModel(msg domain.Message) (MessageModel, error) {
	model := MessageModel{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Role:           msg.Role,
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt,
	}
	if len(msg.Meta) > 0 {
		raw, err := json.Marshal(msg.Meta)
		if err != nil {
			return MessageModel{}, fmt.Errorf("encode message meta: %w", err)
		}
		model.Meta = datatypes.JSON(raw)
	}
	return model, nil
}

func messageFromModel(m MessageModel) (domain.Message, error) {
	msg := domain.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
	if len(m.Meta) > 0 {
		if err := json.Unmarshal(m.Meta, &msg.Meta); err != nil {
			return domain.Message{}, fmt.Errorf("decode message meta: %w", err)
		}
	}
	return msg, nil
}

func artifactToModel(a domain.Artifact) ArtifactModel {
	return ArtifactModel{
		ID:             a.ID,
		ConversationID: a.ConversationID,
		StorageKey:     a.StorageKey,
		DownloadURL:    a.DownloadURL,
		SizeBytes:      a.SizeBytes,
		CreatedAt:      a.CreatedAt,
	}
}

func artifactFromModel(m ArtifactModel) domain.Artifact {
	return domain.Artifact{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		StorageKey:     m.StorageKey,
		DownloadURL:    m.DownloadURL,
		SizeBytes:      m.SizeBytes,
		CreatedAt:      m.CreatedAt,
	}
}
