package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Grey-kingreys/gestion-contact-back/internal/domain"
	"github.com/Grey-kingreys/gestion-contact-back/internal/infrastructure/database"
	apperrors "github.com/Grey-kingreys/gestion-contact-back/pkg/errors"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string) *domain.User {
	t.Helper()
	user := domain.User{
		ID:    uuid.New(),
		Email: fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8]),
		Name:  name,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func TestConversationRepository_FindBetween(t *testing.T) {
	db := openTestDB(t)
	repo := NewConversationRepository(db, zap.NewNop())
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	carol := seedUser(t, db, "carol")

	created, err := repo.Create(ctx, alice, bob)
	require.NoError(t, err)

	t.Run("finds the conversation regardless of argument order", func(t *testing.T) {
		found, err := repo.FindBetween(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, created.ID, found.ID)

		reversed, err := repo.FindBetween(ctx, bob.ID, alice.ID)
		require.NoError(t, err)
		require.NotNil(t, reversed)
		assert.Equal(t, created.ID, reversed.ID)
	})

	t.Run("returns nil for a pair without a conversation", func(t *testing.T) {
		found, err := repo.FindBetween(ctx, alice.ID, carol.ID)
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestConversationRepository_Create(t *testing.T) {
	db := openTestDB(t)
	repo := NewConversationRepository(db, zap.NewNop())
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	created, err := repo.Create(ctx, alice, bob)
	require.NoError(t, err)

	require.Len(t, created.Messages, 1)
	welcome := created.Messages[0]
	assert.Equal(t, "New conversation between alice and bob", welcome.Content)
	assert.Equal(t, alice.ID, welcome.SenderID)
	assert.Equal(t, domain.MessageStateActive, welcome.State)

	loaded, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Len(t, loaded.Participants, 2)
	assert.True(t, loaded.HasParticipant(alice.ID))
	assert.True(t, loaded.HasParticipant(bob.ID))
}

func TestConversationRepository_Create_ConvergesOnPairKey(t *testing.T) {
	db := openTestDB(t)
	repo := NewConversationRepository(db, zap.NewNop())
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	// Two creators that both passed the existence check; the pair-key
	// index lets exactly one insert through.
	winner, err := repo.Create(ctx, alice, bob)
	require.NoError(t, err)
	require.NotNil(t, winner)

	loser, err := repo.Create(ctx, bob, alice)
	require.NoError(t, err)
	assert.Nil(t, loser, "second creator must observe the conflict, not a new row")

	var conversations int64
	require.NoError(t, db.Model(&domain.Conversation{}).Count(&conversations).Error)
	assert.Equal(t, int64(1), conversations)

	// The losing insert must leave no orphaned participants or welcome message.
	var participants int64
	require.NoError(t, db.Model(&domain.ConversationParticipant{}).Count(&participants).Error)
	assert.Equal(t, int64(2), participants)
	var messages int64
	require.NoError(t, db.Model(&domain.Message{}).Count(&messages).Error)
	assert.Equal(t, int64(1), messages)

	found, err := repo.FindBetween(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, winner.ID, found.ID)
}

func TestConversationRepository_AppendMessage(t *testing.T) {
	db := openTestDB(t)
	repo := NewConversationRepository(db, zap.NewNop())
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	created, err := repo.Create(ctx, alice, bob)
	require.NoError(t, err)

	before, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	message, err := repo.AppendMessage(ctx, created.ID, bob.ID, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", message.Content)
	assert.Equal(t, bob.ID, message.Sender.ID)

	after, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt),
		"appending a message must bump the conversation's updated_at")
}

func TestConversationRepository_AppendMessage_RejectsBlankContent(t *testing.T) {
	db := openTestDB(t)
	repo := NewConversationRepository(db, zap.NewNop())
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	created, err := repo.Create(ctx, alice, bob)
	require.NoError(t, err)

	for _, content := range []string{"", "   ", "\n\t"} {
		message, err := repo.AppendMessage(ctx, created.ID, alice.ID, content)
		assert.ErrorIs(t, err, apperrors.ErrEmptyContent)
		assert.Nil(t, message)
	}

	// Only the welcome message exists.
	var messages int64
	require.NoError(t, db.Model(&domain.Message{}).Count(&messages).Error)
	assert.Equal(t, int64(1), messages)
}

func TestConversationRepository_MarkDeletedForAll(t *testing.T) {
	db := openTestDB(t)
	repo := NewConversationRepository(db, zap.NewNop())
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	created, err := repo.Create(ctx, alice, bob)
	require.NoError(t, err)
	message, err := repo.AppendMessage(ctx, created.ID, alice.ID, "delete me")
	require.NoError(t, err)

	deleted, err := repo.MarkDeletedForAll(ctx, message.ID)
	require.NoError(t, err)
	assert.True(t, deleted.Deleted())
	assert.True(t, deleted.DeletedAt.Valid)

	again, err := repo.MarkDeletedForAll(ctx, message.ID)
	require.NoError(t, err)
	assert.True(t, again.Deleted())
	assert.Equal(t, deleted.DeletedAt.Time.Unix(), again.DeletedAt.Time.Unix())
}

func TestConversationRepository_ListForUser(t *testing.T) {
	db := openTestDB(t)
	repo := NewConversationRepository(db, zap.NewNop())
	store := NewVisibilityStore(db)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	carol := seedUser(t, db, "carol")

	withBob, err := repo.Create(ctx, alice, bob)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	withCarol, err := repo.Create(ctx, alice, carol)
	require.NoError(t, err)

	t.Run("orders by latest activity and loads participants", func(t *testing.T) {
		conversations, err := repo.ListForUser(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, conversations, 2)
		assert.Equal(t, withCarol.ID, conversations[0].ID)
		assert.Equal(t, withBob.ID, conversations[1].ID)
		assert.Len(t, conversations[0].Participants, 2)
	})

	t.Run("skips conversations hidden by the viewer only", func(t *testing.T) {
		require.NoError(t, store.HideConversation(ctx, alice.ID, withBob.ID))

		forAlice, err := repo.ListForUser(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, forAlice, 1)
		assert.Equal(t, withCarol.ID, forAlice[0].ID)

		forBob, err := repo.ListForUser(ctx, bob.ID)
		require.NoError(t, err)
		require.Len(t, forBob, 1)
		assert.Equal(t, withBob.ID, forBob[0].ID)
	})

	t.Run("last message respects the viewer's visibility", func(t *testing.T) {
		hidden, err := repo.AppendMessage(ctx, withCarol.ID, alice.ID, "secret")
		require.NoError(t, err)
		require.NoError(t, store.HideMessage(ctx, carol.ID, hidden.ID))

		forCarol, err := repo.ListForUser(ctx, carol.ID)
		require.NoError(t, err)
		require.Len(t, forCarol, 1)
		require.Len(t, forCarol[0].Messages, 1)
		assert.NotEqual(t, hidden.ID, forCarol[0].Messages[0].ID)

		forAlice, err := repo.ListForUser(ctx, alice.ID)
		require.NoError(t, err)
		var summary *domain.Conversation
		for i := range forAlice {
			if forAlice[i].ID == withCarol.ID {
				summary = &forAlice[i]
			}
		}
		require.NotNil(t, summary)
		require.Len(t, summary.Messages, 1)
		assert.Equal(t, hidden.ID, summary.Messages[0].ID)
	})
}

func TestConversationRepository_Get(t *testing.T) {
	db := openTestDB(t)
	repo := NewConversationRepository(db, zap.NewNop())
	store := NewVisibilityStore(db)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	created, err := repo.Create(ctx, alice, bob)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	first, err := repo.AppendMessage(ctx, created.ID, alice.ID, "first")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := repo.AppendMessage(ctx, created.ID, bob.ID, "second")
	require.NoError(t, err)

	t.Run("returns history in ascending order", func(t *testing.T) {
		conversation, err := repo.Get(ctx, created.ID, alice.ID)
		require.NoError(t, err)
		require.NotNil(t, conversation)
		require.Len(t, conversation.Messages, 3)
		assert.Equal(t, first.ID, conversation.Messages[1].ID)
		assert.Equal(t, second.ID, conversation.Messages[2].ID)
		assert.Equal(t, "bob", conversation.Messages[2].Sender.Name)
	})

	t.Run("filters deleted and viewer-hidden messages", func(t *testing.T) {
		_, err := repo.MarkDeletedForAll(ctx, first.ID)
		require.NoError(t, err)
		require.NoError(t, store.HideMessage(ctx, alice.ID, second.ID))

		forAlice, err := repo.Get(ctx, created.ID, alice.ID)
		require.NoError(t, err)
		require.Len(t, forAlice.Messages, 1)

		forBob, err := repo.Get(ctx, created.ID, bob.ID)
		require.NoError(t, err)
		require.Len(t, forBob.Messages, 2)
	})

	t.Run("returns nil for a missing conversation", func(t *testing.T) {
		conversation, err := repo.Get(ctx, uuid.New(), alice.ID)
		require.NoError(t, err)
		assert.Nil(t, conversation)
	})
}

func TestVisibilityStore_Idempotence(t *testing.T) {
	db := openTestDB(t)
	repo := NewConversationRepository(db, zap.NewNop())
	store := NewVisibilityStore(db)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	created, err := repo.Create(ctx, alice, bob)
	require.NoError(t, err)
	message, err := repo.AppendMessage(ctx, created.ID, alice.ID, "hide me")
	require.NoError(t, err)

	t.Run("conversation hide upserts on the composite key", func(t *testing.T) {
		require.NoError(t, store.HideConversation(ctx, alice.ID, created.ID))
		require.NoError(t, store.HideConversation(ctx, alice.ID, created.ID))

		var count int64
		require.NoError(t, db.Model(&domain.ConversationHide{}).
			Where("user_id = ? AND conversation_id = ?", alice.ID, created.ID).
			Count(&count).Error)
		assert.Equal(t, int64(1), count)

		hidden, err := store.IsConversationHidden(ctx, alice.ID, created.ID)
		require.NoError(t, err)
		assert.True(t, hidden)

		hiddenForBob, err := store.IsConversationHidden(ctx, bob.ID, created.ID)
		require.NoError(t, err)
		assert.False(t, hiddenForBob)
	})

	t.Run("message hide upserts on the composite key", func(t *testing.T) {
		require.NoError(t, store.HideMessage(ctx, bob.ID, message.ID))
		require.NoError(t, store.HideMessage(ctx, bob.ID, message.ID))

		var count int64
		require.NoError(t, db.Model(&domain.MessageHide{}).
			Where("user_id = ? AND message_id = ?", bob.ID, message.ID).
			Count(&count).Error)
		assert.Equal(t, int64(1), count)

		hidden, err := store.IsMessageHidden(ctx, bob.ID, message.ID)
		require.NoError(t, err)
		assert.True(t, hidden)
	})
}

func TestUserRepository_ResolveUser(t *testing.T) {
	db := openTestDB(t)
	users := NewUserRepository(db)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")

	resolved, err := users.ResolveUser(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, "alice", resolved.Name)

	missing, err := users.ResolveUser(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}
