package user

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/iyunix/go-chatrelay/internal/database"
	"github.com/iyunix/go-chatrelay/internal/domain"
)

func newTestRepo(t *testing.T) UserRepository {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	db, err := database.Open(database.DriverSQLite, dsn, logger.Silent)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return NewGormUserRepository(db)
}

func TestCreateAndFind(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, &domain.User{Name: "Ada", Email: " Ada@Example.com ", Password: "hash"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", created.Email)

	byEmail, err := repo.FindByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	_, err = repo.Create(ctx, &domain.User{Name: "Ada Again", Email: "ada@example.com", Password: "hash"})
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = repo.FindByID(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdatePreferencesRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u, err := repo.Create(ctx, &domain.User{Name: "Ada", Email: "ada@example.com", Password: "hash"})
	require.NoError(t, err)

	require.NoError(t, repo.UpdatePreferredModel(ctx, u.ID, "vendor/model-a"))
	require.NoError(t, repo.UpdateInstructions(ctx, u.ID, Instructions{
		AboutYou:          "I write Go.",
		AssistantBehavior: "Be brief.",
		CustomCommands: []domain.CustomCommand{
			{Name: "Summary", Command: "/tldr", Description: "Summarize the thread"},
		},
	}))

	got, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "vendor/model-a", got.PreferredModel)
	assert.Equal(t, "I write Go.", got.AboutYou)
	assert.Equal(t, "Be brief.", got.AssistantBehavior)
	require.Len(t, got.Commands(), 1)
	assert.Equal(t, "/tldr", got.Commands()[0].Command)

	assert.ErrorIs(t, repo.UpdatePreferredModel(ctx, 999, "x"), ErrUserNotFound)
}
