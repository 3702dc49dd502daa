package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stenlabs/sten/backend/internal/model/widget"
	"github.com/stenlabs/sten/backend/internal/store"
)

func newMockedStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	gormDB, err := gorm.Open("postgres", db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = gormDB.Close() })
	return New(gormDB), mock
}

func TestGuestByEmailFound(t *testing.T) {
	s, mock := newMockedStore(t)
	created := time.Now().UTC()

	mock.ExpectQuery(`SELECT (.+) FROM "guest_users" WHERE (.+)`).
		WithArgs("w1", "a@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "widget_id", "name", "email", "phone", "created_at"}).
			AddRow("g1", "w1", "Alice", "a@x.com", "", created))

	guest, err := s.GuestByEmail(context.Background(), "w1", "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "g1", guest.ID)
	assert.Equal(t, "Alice", guest.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGuestByEmailNotFound(t *testing.T) {
	s, mock := newMockedStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM "guest_users" WHERE (.+)`).
		WithArgs("w1", "missing@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.GuestByEmail(context.Background(), "w1", "missing@x.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAppendMessageInserts(t *testing.T) {
	s, mock := newMockedStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "guest_messages"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("m1"))
	mock.ExpectCommit()

	msg, err := s.AppendMessage(context.Background(), widget.Message{
		GuestID:   "g1",
		SessionID: "s1",
		Sender:    widget.SenderGuest,
		Text:      "Hi",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, widget.SenderGuest, msg.Sender)
	assert.False(t, msg.CreatedAt.IsZero())
}

func TestTouchSessionNotFound(t *testing.T) {
	s, mock := newMockedStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "chat_sessions"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := s.TouchSession(context.Background(), "missing", time.Now())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMessagesBySessionOrdersAscending(t *testing.T) {
	s, mock := newMockedStore(t)
	base := time.Now().UTC()

	mock.ExpectQuery(`SELECT (.+) FROM "guest_messages" WHERE (.+)`).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "guest_id", "session_id", "sender", "message_text", "created_at"}).
			AddRow("m1", "g1", "s1", "guest", "Hi", base).
			AddRow("m2", "g1", "s1", "ai", "Hello!", base.Add(time.Second)))

	messages, err := s.MessagesBySession(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, widget.SenderGuest, messages[0].Sender)
	assert.Equal(t, widget.SenderAI, messages[1].Sender)
}
