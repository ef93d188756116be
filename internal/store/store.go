// Package store persists conversation sessions in SQLite using GORM.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kotoba-dev/kotoba/internal/protocol"
)

const dbFileName = "kotoba.db"

// ErrSessionNotFound is returned when a session ID does not exist.
var ErrSessionNotFound = errors.New("session not found")

// ImageRedactedPlaceholder replaces base64 image payloads before
// persisting. History reloaded from the store keeps the block structure
// but not the bytes; callers replaying history must not treat it as
// image data.
const ImageRedactedPlaceholder = "[image data not persisted]"

// Store persists sessions and their messages in SQLite.
type Store struct {
	db *gorm.DB
	mu sync.Mutex
}

// NewStore creates or opens the session database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFileName)
	dsn := dbPath + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=1"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening session database: %w", err)
	}

	if err := db.AutoMigrate(&Session{}, &StoredMessage{}); err != nil {
		return nil, fmt.Errorf("migrating session database: %w", err)
	}

	logrus.Debugf("session store opened at %s", dbPath)
	return &Store{db: db}, nil
}

// CreateSession creates a new session with a generated ID.
func (s *Store) CreateSession(title string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := &Session{
		ID:    uuid.New().String(),
		Title: title,
	}
	if err := s.db.Create(session).Error; err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return session, nil
}

// GetSession returns a session by ID.
func (s *Store) GetSession(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var session Session
	err := s.db.First(&session, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return &session, nil
}

// ListSessions returns all sessions, most recently updated first.
func (s *Store) ListSessions() ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sessions []Session
	if err := s.db.Order("updated_at DESC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return sessions, nil
}

// DeleteSession removes a session and its messages.
func (s *Store) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&Session{}, "id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("deleting session: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrSessionNotFound
		}
		if err := tx.Delete(&StoredMessage{}, "session_id = ?", id).Error; err != nil {
			return fmt.Errorf("deleting session messages: %w", err)
		}
		return nil
	})
}

// AppendMessage persists one conversation turn and bumps the session's
// update time. Image payloads are redacted before writing.
func (s *Store) AppendMessage(sessionID string, msg protocol.ChatMessage) error {
	body, err := encodeMessage(msg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	if err := s.db.Model(&Session{}).Where("id = ?", sessionID).Count(&count).Error; err != nil {
		return fmt.Errorf("checking session: %w", err)
	}
	if count == 0 {
		return ErrSessionNotFound
	}

	record := &StoredMessage{
		SessionID: sessionID,
		Role:      msg.Role,
		Body:      body,
	}
	if err := s.db.Create(record).Error; err != nil {
		return fmt.Errorf("appending message: %w", err)
	}

	return s.db.Model(&Session{}).Where("id = ?", sessionID).
		Update("updated_at", time.Now().UTC()).Error
}

// LoadMessages returns the session's history in insertion order.
func (s *Store) LoadMessages(sessionID string) ([]protocol.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []StoredMessage
	if err := s.db.Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}

	messages := make([]protocol.ChatMessage, 0, len(records))
	for _, r := range records {
		var msg protocol.ChatMessage
		if err := json.Unmarshal([]byte(r.Body), &msg); err != nil {
			logrus.Warnf("skipping undecodable message %d in session %s: %v", r.ID, sessionID, err)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

// encodeMessage marshals a message to JSON with image data replaced by
// a placeholder.
func encodeMessage(msg protocol.ChatMessage) (string, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encoding message: %w", err)
	}

	body := string(data)
	for i, b := range msg.Blocks {
		if b.Type != protocol.BlockTypeImage || b.Data == "" {
			continue
		}
		body, err = sjson.Set(body, fmt.Sprintf("blocks.%d.data", i), ImageRedactedPlaceholder)
		if err != nil {
			return "", fmt.Errorf("redacting image data: %w", err)
		}
	}
	return body, nil
}
