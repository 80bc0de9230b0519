package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qirllo/school-api/internal/models"
	appErrors "github.com/qirllo/school-api/pkg/errors"
)

func TestMessageServiceSendAndRead(t *testing.T) {
	repo := newFakeMessages()
	svc := NewMessageService(repo, seededUsers(), nil, nil, nil)
	ctx := context.Background()

	sent, err := svc.Send(ctx, teacherCaller("t1"), models.SendMessageRequest{RecipientID: "p1", Subject: "Homework", Content: "Please check the diary."})
	require.NoError(t, err)
	assert.Equal(t, "direct", sent.MessageType)
	assert.Equal(t, "Parent One", *sent.RecipientName)

	count, err := svc.UnreadCount(ctx, parentCaller("p1"))
	require.NoError(t, err)
	assert.Equal(t, 1, count.Count)

	// the sender opening it leaves it unread
	msg, err := svc.Get(ctx, teacherCaller("t1"), sent.ID)
	require.NoError(t, err)
	assert.False(t, msg.IsRead)

	msg, err = svc.Get(ctx, parentCaller("p1"), sent.ID)
	require.NoError(t, err)
	assert.True(t, msg.IsRead)
	require.NotNil(t, msg.ReadAt)

	count, err = svc.UnreadCount(ctx, parentCaller("p1"))
	require.NoError(t, err)
	assert.Equal(t, 0, count.Count)

	_, err = svc.Get(ctx, adminCaller(), sent.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Get(ctx, parentCaller("p1"), "missing")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestMessageServiceSendErrors(t *testing.T) {
	svc := NewMessageService(newFakeMessages(), seededUsers(), nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Send(ctx, teacherCaller("t1"), models.SendMessageRequest{RecipientID: "ghost", Subject: "Hi", Content: "there"})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Send(ctx, teacherCaller("t1"), models.SendMessageRequest{RecipientID: "p1", Content: "no subject"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Send(ctx, nil, models.SendMessageRequest{RecipientID: "p1", Subject: "Hi", Content: "there"})
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestMessageServiceFolders(t *testing.T) {
	svc := NewMessageService(newFakeMessages(), seededUsers(), nil, nil, nil)
	ctx := context.Background()
	_, err := svc.Send(ctx, teacherCaller("t1"), models.SendMessageRequest{RecipientID: "p1", Subject: "A", Content: "a"})
	require.NoError(t, err)
	_, err = svc.Send(ctx, parentCaller("p1"), models.SendMessageRequest{RecipientID: "t1", Subject: "B", Content: "b"})
	require.NoError(t, err)

	inbox, err := svc.Folder(ctx, parentCaller("p1"), "")
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "A", inbox[0].Subject)

	sent, err := svc.Folder(ctx, parentCaller("p1"), models.FolderSent)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, "B", sent[0].Subject)

	_, err = svc.Folder(ctx, parentCaller("p1"), "trash")
	assert.True(t, appErrors.Is(err, appErrors.ErrBadRequest))
}
