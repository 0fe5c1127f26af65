package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/dino-games/backend/models"
	"github.com/upb/dino-games/backend/repositories"
	"go.uber.org/zap"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return Wrap(sqlDB, zap.NewNop()), mock
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("create ignores duplicate email", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())
		user := models.NewUser("", "rex@example.com")

		mock.ExpectExec("INSERT INTO users .* ON CONFLICT \\(email\\) DO NOTHING").
			WithArgs(user.ID, models.DefaultUserName, "rex@example.com", user.CreatedAt, user.UpdatedAt).
			WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, repo.Create(ctx, user))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("get by email", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())
		id := uuid.New()
		now := time.Now().UTC()

		mock.ExpectQuery("SELECT id, name, email, created_at, updated_at FROM users WHERE email = \\$1").
			WithArgs("rex@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "created_at", "updated_at"}).
				AddRow(id, "Rex", "rex@example.com", now, now))

		user, err := repo.GetByEmail(ctx, "rex@example.com")
		require.NoError(t, err)
		assert.Equal(t, id, user.ID)
		assert.Equal(t, "Rex", user.Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("get by email not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())

		mock.ExpectQuery("FROM users").WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByEmail(ctx, "ghost@example.com")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})

	t.Run("get by email driver error", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())

		mock.ExpectQuery("FROM users").WillReturnError(sql.ErrConnDone)

		_, err := repo.GetByEmail(ctx, "rex@example.com")
		require.Error(t, err)
		assert.False(t, errors.Is(err, repositories.ErrNotFound))
	})
}

func TestGameRepository(t *testing.T) {
	ctx := context.Background()
	columns := []string{"id", "name", "description", "created_at"}

	t.Run("list ordered by id", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewGameRepository(db, zap.NewNop())
		now := time.Now().UTC()

		mock.ExpectQuery("SELECT id, name, description, created_at FROM games ORDER BY id").
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow(1, "Memoria", "Parejas", now).
				AddRow(2, "Trivia", "Preguntas", now))

		games, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, games, 2)
		assert.Equal(t, 1, games[0].ID)
		assert.Equal(t, "Trivia", games[1].Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("list query error", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewGameRepository(db, zap.NewNop())

		mock.ExpectQuery("FROM games").WillReturnError(sql.ErrConnDone)

		_, err := repo.List(ctx)
		assert.ErrorIs(t, err, sql.ErrConnDone)
	})

	t.Run("get by id not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewGameRepository(db, zap.NewNop())

		mock.ExpectQuery("FROM games WHERE id = \\$1").WithArgs(9).WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByID(ctx, 9)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})

	t.Run("create", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewGameRepository(db, zap.NewNop())
		game := models.NewGame(1)

		mock.ExpectExec("INSERT INTO games .* ON CONFLICT \\(id\\) DO NOTHING").
			WithArgs(1, game.Name, game.Description, game.CreatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(ctx, game))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestScoreRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("create", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewScoreRepository(db, zap.NewNop())
		score := models.NewScore(uuid.New(), 1, 80, 30, 12)

		mock.ExpectExec("INSERT INTO scores").
			WithArgs(score.ID, score.UserID, 1, 80, 30, 12, score.PlayedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(ctx, score))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("list recent by user", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewScoreRepository(db, zap.NewNop())
		userID := uuid.New()
		now := time.Now().UTC()

		mock.ExpectQuery("FROM scores s JOIN games g ON g.id = s.game_id WHERE s.user_id = \\$1 ORDER BY s.played_at DESC LIMIT \\$2").
			WithArgs(userID, 10).
			WillReturnRows(sqlmock.NewRows([]string{"id", "game_id", "name", "points", "played_at"}).
				AddRow(uuid.New(), 1, "Memoria", 90, now).
				AddRow(uuid.New(), 1, "Memoria", 40, now.Add(-time.Hour)))

		scores, err := repo.ListRecentByUser(ctx, userID, 10)
		require.NoError(t, err)
		require.Len(t, scores, 2)
		assert.Equal(t, "Memoria", scores[0].GameName)
		assert.Equal(t, 90, scores[0].Points)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("list recent returns empty slice", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewScoreRepository(db, zap.NewNop())

		mock.ExpectQuery("FROM scores").
			WillReturnRows(sqlmock.NewRows([]string{"id", "game_id", "name", "points", "played_at"}))

		scores, err := repo.ListRecentByUser(ctx, uuid.New(), 10)
		require.NoError(t, err)
		assert.NotNil(t, scores)
		assert.Empty(t, scores)
	})
}

func TestTransactionManager(t *testing.T) {
	ctx := context.Background()

	t.Run("commits and routes repository calls through the tx", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())
		repo := NewGameRepository(db, zap.NewNop())

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO games").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := tm.InTransaction(ctx, func(txCtx context.Context) error {
			_, ok := GetTransactionFromContext(txCtx)
			assert.True(t, ok)
			return repo.Create(txCtx, models.NewGame(1))
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())
		boom := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := tm.InTransaction(ctx, func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back and re-panics", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())

		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.Panics(t, func() {
			_ = tm.InTransaction(ctx, func(context.Context) error { panic("kaboom") })
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nested call joins the outer transaction", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())

		mock.ExpectBegin()
		mock.ExpectCommit()

		err := tm.InTransaction(ctx, func(outer context.Context) error {
			return tm.InTransaction(outer, func(inner context.Context) error {
				assert.Equal(t, outer, inner)
				return nil
			})
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())

		mock.ExpectBegin().WillReturnError(sql.ErrConnDone)

		called := false
		err := tm.InTransaction(ctx, func(context.Context) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, sql.ErrConnDone)
		assert.False(t, called)
	})
}

func TestDB(t *testing.T) {
	ctx := context.Background()

	t.Run("health check", func(t *testing.T) {
		db, mock := newMockDB(t)

		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		assert.NoError(t, db.HealthCheck(ctx))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("health check ping failure", func(t *testing.T) {
		db, mock := newMockDB(t)

		mock.ExpectPing().WillReturnError(sql.ErrConnDone)

		assert.Error(t, db.HealthCheck(ctx))
	})

	t.Run("init schema", func(t *testing.T) {
		db, mock := newMockDB(t)

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnResult(sqlmock.NewResult(0, 0))

		assert.NoError(t, db.InitSchema(ctx))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("factory builds repositories over one pool", func(t *testing.T) {
		db, _ := newMockDB(t)
		factory := NewRepositoryFactoryWithDB(db, zap.NewNop())

		repos := factory.NewRepositories()
		assert.NotNil(t, repos.Users)
		assert.NotNil(t, repos.Games)
		assert.NotNil(t, repos.Scores)
		assert.NotNil(t, factory.GetTransactionManager())
		assert.Same(t, db, factory.GetDB())
	})
}
