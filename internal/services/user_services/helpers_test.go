package user_services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/iyunix/go-chatrelay/internal/database"
	"github.com/iyunix/go-chatrelay/internal/repository/user"
	"github.com/iyunix/go-chatrelay/internal/services"
)

func newUserRepo(t *testing.T) user.UserRepository {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	db, err := database.Open(database.DriverSQLite, dsn, logger.Silent)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return user.NewGormUserRepository(db)
}

var testLogger = &services.NoOpLogger{}
