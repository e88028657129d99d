package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"foodlink/internal/notification"
	"foodlink/internal/notification/service/mocks"
	"foodlink/internal/notification/store"
	id "foodlink/pkg/domain"
	dErrors "foodlink/pkg/domain-errors"
)

func TestNotify(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	directory := mocks.NewMockDirectory(ctrl)
	dispatcher := New(store, directory)
	ctx := context.Background()
	accountID := id.NewAccountID()

	t.Run("persists and returns the notification", func(t *testing.T) {
		store.EXPECT().Append(ctx, gomock.Any()).Return(nil)

		n, err := dispatcher.Notify(ctx, accountID, "your pickup is ready", notification.SeverityInfo)
		require.NoError(t, err)
		assert.Equal(t, accountID, n.AccountID)
		assert.False(t, n.IsRead)
		assert.False(t, n.ID.IsNil())
	})

	t.Run("rejects empty message", func(t *testing.T) {
		_, err := dispatcher.Notify(ctx, accountID, "", notification.SeverityInfo)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects unknown severity", func(t *testing.T) {
		_, err := dispatcher.Notify(ctx, accountID, "hello", notification.Severity("urgent"))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("storage failure propagates as unavailable", func(t *testing.T) {
		cause := errors.New("connection refused")
		store.EXPECT().Append(ctx, gomock.Any()).Return(cause)

		_, err := dispatcher.Notify(ctx, accountID, "hello", notification.SeverityInfo)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
		assert.True(t, errors.Is(err, cause))
	})
}

func TestNotifyAdmins(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	directory := mocks.NewMockDirectory(ctrl)
	dispatcher := New(store, directory)
	ctx := context.Background()

	admin1 := id.NewAccountID()
	admin2 := id.NewAccountID()
	admin3 := id.NewAccountID()

	t.Run("one failed delivery does not abort the rest", func(t *testing.T) {
		directory.EXPECT().AdminIDs(ctx).Return([]id.AccountID{admin1, admin2, admin3}, nil)

		delivered := make(map[id.AccountID]bool)
		store.EXPECT().Append(ctx, gomock.Any()).Times(3).DoAndReturn(
			func(_ context.Context, n *notification.Notification) error {
				if n.AccountID == admin2 {
					return errors.New("disk full")
				}
				delivered[n.AccountID] = true
				return nil
			})

		err := dispatcher.NotifyAdmins(ctx, "pantry shelf low", notification.SeverityWarning)
		require.NoError(t, err)
		assert.True(t, delivered[admin1])
		assert.True(t, delivered[admin3])
	})

	t.Run("directory failure propagates", func(t *testing.T) {
		directory.EXPECT().AdminIDs(ctx).Return(nil, errors.New("unreachable"))

		err := dispatcher.NotifyAdmins(ctx, "hello", notification.SeverityInfo)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	t.Run("no admins is a quiet no-op", func(t *testing.T) {
		directory.EXPECT().AdminIDs(ctx).Return(nil, nil)
		require.NoError(t, dispatcher.NotifyAdmins(ctx, "hello", notification.SeverityInfo))
	})
}

func TestMarkRead_Scoping(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	dispatcher := New(store.NewMemory(), mocks.NewMockDirectory(ctrl))

	owner := id.NewAccountID()
	other := id.NewAccountID()

	n, err := dispatcher.Notify(ctx, owner, "read me", notification.SeverityInfo)
	require.NoError(t, err)

	// A different account cannot mark it read; silently no-ops.
	require.NoError(t, dispatcher.MarkRead(ctx, n.ID, other))
	unread, err := dispatcher.UnreadCount(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	require.NoError(t, dispatcher.MarkRead(ctx, n.ID, owner))
	unread, err = dispatcher.UnreadCount(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 0, unread)

	// Marking something that no longer matches is not an error.
	require.NoError(t, dispatcher.MarkRead(ctx, id.NewNotificationID(), owner))
}
