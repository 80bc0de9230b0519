package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qirllo/school-api/internal/models"
)

func TestMessageListSentFolder(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMessageRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM messages WHERE sender_id = $1 ORDER BY created_at DESC")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "sender_id", "sender_name", "recipient_id", "recipient_name", "subject", "content", "message_type", "is_read", "read_at", "created_at"}).
			AddRow("m1", "u1", "A", "u2", "B", "Hi", "Hello", "direct", false, nil, now))

	messages, err := repo.ListFolder(context.Background(), "u1", models.FolderSent)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Nil(t, messages[0].ReadAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageMarkReadIsConditional(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMessageRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $2 AND recipient_id = $3 AND is_read = FALSE")).
		WithArgs(sqlmock.AnyArg(), "m1", "u2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.MarkRead(context.Background(), "m1", "u2", time.Now())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageCountUnread(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMessageRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM messages WHERE recipient_id = $1 AND is_read = FALSE")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountUnread(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
