package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
	// Registers the postgres dialect with gorm.
	_ "github.com/jinzhu/gorm/dialects/postgres"

	"github.com/stenlabs/sten/backend/internal/model/widget"
	"github.com/stenlabs/sten/backend/internal/store"
)

// Store implements store.Store on top of a gorm-managed postgres database.
type Store struct {
	db *gorm.DB
}

// Open connects to postgres and returns a ready Store.
func Open(url string) (*Store, error) {
	db, err := gorm.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return New(db), nil
}

// New wraps an existing gorm handle. Used by tests with a mocked driver.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the three record tables.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&guestRow{}, &sessionRow{}, &messageRow{}).Error
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

type guestRow struct {
	ID        string    `gorm:"primary_key"`
	WidgetID  string    `gorm:"index;not null"`
	Name      string    `gorm:"not null"`
	Email     string    `gorm:"index"`
	Phone     string    `gorm:"index"`
	CreatedAt time.Time `gorm:"not null"`
}

func (guestRow) TableName() string { return "guest_users" }

type sessionRow struct {
	ID                 string    `gorm:"primary_key"`
	GuestID            string    `gorm:"index;not null"`
	CreatedAt          time.Time `gorm:"not null"`
	LastMessageAt      time.Time `gorm:"not null"`
	Origin             string    `gorm:"not null"`
	Summary            string    `gorm:"type:text"`
	TopIntent          string
	SummaryGeneratedAt *time.Time
	Active             bool `gorm:"default:true"`
}

func (sessionRow) TableName() string { return "chat_sessions" }

type messageRow struct {
	ID        string    `gorm:"primary_key"`
	GuestID   string    `gorm:"index;not null"`
	SessionID string    `gorm:"index;not null"`
	Sender    string    `gorm:"not null"`
	Text      string    `gorm:"column:message_text;type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (messageRow) TableName() string { return "guest_messages" }

// CreateGuest persists a new guest, assigning id and creation time.
func (s *Store) CreateGuest(_ context.Context, guest widget.Guest) (widget.Guest, error) {
	row := guestRow{
		ID:        uuid.NewString(),
		WidgetID:  guest.WidgetID,
		Name:      guest.Name,
		Email:     guest.Email,
		Phone:     guest.Phone,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return widget.Guest{}, fmt.Errorf("create guest: %w", err)
	}
	return row.toModel(), nil
}

// GuestByID retrieves a guest by identifier.
func (s *Store) GuestByID(_ context.Context, id string) (widget.Guest, error) {
	var row guestRow
	err := s.db.Where("id = ?", id).First(&row).Error
	if gorm.IsRecordNotFoundError(err) {
		return widget.Guest{}, fmt.Errorf("guest %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return widget.Guest{}, fmt.Errorf("guest by id: %w", err)
	}
	return row.toModel(), nil
}

// GuestByEmail looks up a guest by (widget id, email).
func (s *Store) GuestByEmail(_ context.Context, widgetID, email string) (widget.Guest, error) {
	var row guestRow
	err := s.db.Where("widget_id = ? AND email = ?", widgetID, email).First(&row).Error
	if gorm.IsRecordNotFoundError(err) {
		return widget.Guest{}, fmt.Errorf("guest by email: %w", store.ErrNotFound)
	}
	if err != nil {
		return widget.Guest{}, fmt.Errorf("guest by email: %w", err)
	}
	return row.toModel(), nil
}

// GuestByPhone looks up a guest by (widget id, phone).
func (s *Store) GuestByPhone(_ context.Context, widgetID, phone string) (widget.Guest, error) {
	var row guestRow
	err := s.db.Where("widget_id = ? AND phone = ?", widgetID, phone).First(&row).Error
	if gorm.IsRecordNotFoundError(err) {
		return widget.Guest{}, fmt.Errorf("guest by phone: %w", store.ErrNotFound)
	}
	if err != nil {
		return widget.Guest{}, fmt.Errorf("guest by phone: %w", err)
	}
	return row.toModel(), nil
}

// GuestsByWidget lists a widget's guests, newest first.
func (s *Store) GuestsByWidget(_ context.Context, widgetID string) ([]widget.Guest, error) {
	var rows []guestRow
	if err := s.db.Where("widget_id = ?", widgetID).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("guests by widget: %w", err)
	}
	guests := make([]widget.Guest, len(rows))
	for i, row := range rows {
		guests[i] = row.toModel()
	}
	return guests, nil
}

// CreateSession persists a new session, assigning id and timestamps.
func (s *Store) CreateSession(_ context.Context, session widget.ChatSession) (widget.ChatSession, error) {
	now := time.Now().UTC()
	last := session.LastMessageAt
	if last.IsZero() {
		last = now
	}
	row := sessionRow{
		ID:            uuid.NewString(),
		GuestID:       session.GuestID,
		CreatedAt:     now,
		LastMessageAt: last,
		Origin:        string(session.Origin),
		Active:        session.Active,
	}
	if err := s.db.Create(&row).Error; err != nil {
		return widget.ChatSession{}, fmt.Errorf("create session: %w", err)
	}
	return row.toModel(), nil
}

// SessionByID retrieves a session by identifier.
func (s *Store) SessionByID(_ context.Context, id string) (widget.ChatSession, error) {
	var row sessionRow
	err := s.db.Where("id = ?", id).First(&row).Error
	if gorm.IsRecordNotFoundError(err) {
		return widget.ChatSession{}, fmt.Errorf("session %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return widget.ChatSession{}, fmt.Errorf("session by id: %w", err)
	}
	return row.toModel(), nil
}

// SessionsByGuest lists a guest's sessions, newest first.
func (s *Store) SessionsByGuest(_ context.Context, guestID string) ([]widget.ChatSession, error) {
	var rows []sessionRow
	if err := s.db.Where("guest_id = ?", guestID).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("sessions by guest: %w", err)
	}
	sessions := make([]widget.ChatSession, len(rows))
	for i, row := range rows {
		sessions[i] = row.toModel()
	}
	return sessions, nil
}

// TouchSession stamps last activity on a session.
func (s *Store) TouchSession(_ context.Context, id string, at time.Time) error {
	result := s.db.Model(&sessionRow{}).Where("id = ?", id).Update("last_message_at", at.UTC())
	if result.Error != nil {
		return fmt.Errorf("touch session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("session %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// SaveAnalysis overwrites the derived summary fields on a session.
func (s *Store) SaveAnalysis(ctx context.Context, id, summary, topIntent string, at time.Time) (widget.ChatSession, error) {
	generated := at.UTC()
	result := s.db.Model(&sessionRow{}).Where("id = ?", id).Updates(map[string]interface{}{
		"summary":              summary,
		"top_intent":           topIntent,
		"summary_generated_at": generated,
	})
	if result.Error != nil {
		return widget.ChatSession{}, fmt.Errorf("save analysis: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return widget.ChatSession{}, fmt.Errorf("session %s: %w", id, store.ErrNotFound)
	}
	return s.SessionByID(ctx, id)
}

// AppendMessage inserts a message, assigning id and creation time.
func (s *Store) AppendMessage(_ context.Context, message widget.Message) (widget.Message, error) {
	row := messageRow{
		ID:        uuid.NewString(),
		GuestID:   message.GuestID,
		SessionID: message.SessionID,
		Sender:    string(message.Sender),
		Text:      message.Text,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return widget.Message{}, fmt.Errorf("append message: %w", err)
	}
	return row.toModel(), nil
}

// MessagesBySession returns a session's messages ascending by creation time,
// with id as a stable tie-break for rows created in the same instant.
func (s *Store) MessagesBySession(_ context.Context, sessionID string) ([]widget.Message, error) {
	var rows []messageRow
	if err := s.db.Where("session_id = ?", sessionID).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("messages by session: %w", err)
	}
	messages := make([]widget.Message, len(rows))
	for i, row := range rows {
		messages[i] = row.toModel()
	}
	return messages, nil
}

// MessagesByGuest returns every message a guest exchanged across sessions.
func (s *Store) MessagesByGuest(_ context.Context, guestID string) ([]widget.Message, error) {
	var rows []messageRow
	if err := s.db.Where("guest_id = ?", guestID).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("messages by guest: %w", err)
	}
	messages := make([]widget.Message, len(rows))
	for i, row := range rows {
		messages[i] = row.toModel()
	}
	return messages, nil
}

func (r guestRow) toModel() widget.Guest {
	return widget.Guest{
		ID:        r.ID,
		WidgetID:  r.WidgetID,
		Name:      r.Name,
		Email:     r.Email,
		Phone:     r.Phone,
		CreatedAt: r.CreatedAt,
	}
}

func (r sessionRow) toModel() widget.ChatSession {
	return widget.ChatSession{
		ID:                 r.ID,
		GuestID:            r.GuestID,
		CreatedAt:          r.CreatedAt,
		LastMessageAt:      r.LastMessageAt,
		Origin:             widget.SessionOrigin(r.Origin),
		Summary:            r.Summary,
		TopIntent:          r.TopIntent,
		SummaryGeneratedAt: r.SummaryGeneratedAt,
		Active:             r.Active,
	}
}

func (r messageRow) toModel() widget.Message {
	return widget.Message{
		ID:        r.ID,
		GuestID:   r.GuestID,
		SessionID: r.SessionID,
		Sender:    widget.Sender(r.Sender),
		Text:      r.Text,
		CreatedAt: r.CreatedAt,
	}
}
