package recipe_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmdgusya/crawl-selector/internal/recipe"
)

func newPostgresStore(t *testing.T) (*recipe.PostgresStore, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	return recipe.NewPostgresStore(sqlx.NewDb(mockDB, "postgres")), mock
}

func TestPostgresStore_Get(t *testing.T) {
	t.Parallel()

	store, mock := newPostgresStore(t)
	r := newRecipe("a", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	body, err := json.Marshal(r)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT id, body FROM recipes ORDER BY created_at, id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "body"}).AddRow("a", body))
	mock.ExpectQuery("SELECT active_recipe_id FROM recipe_session").
		WillReturnRows(sqlmock.NewRows([]string{"active_recipe_id"}).AddRow("a"))

	snap, err := store.Get(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Recipes, 1)
	assert.Equal(t, "recipe a", snap.Recipes[0].Name)
	assert.Equal(t, "a", snap.ActiveID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetWithoutSession(t *testing.T) {
	t.Parallel()

	store, mock := newPostgresStore(t)
	mock.ExpectQuery("SELECT id, body FROM recipes").
		WillReturnRows(sqlmock.NewRows([]string{"id", "body"}))
	mock.ExpectQuery("SELECT active_recipe_id FROM recipe_session").
		WillReturnRows(sqlmock.NewRows([]string{"active_recipe_id"}))

	snap, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Recipes)
	assert.Empty(t, snap.ActiveID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Put(t *testing.T) {
	t.Parallel()

	store, mock := newPostgresStore(t)
	r := newRecipe("a", time.Now().UTC())

	mock.ExpectExec("INSERT INTO recipes").
		WithArgs("a", "recipe a", "", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Put(context.Background(), r))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RemoveMissing(t *testing.T) {
	t.Parallel()

	store, mock := newPostgresStore(t)
	mock.ExpectExec("DELETE FROM recipes WHERE id").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Remove(context.Background(), "missing")
	require.ErrorIs(t, err, recipe.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetActive(t *testing.T) {
	t.Parallel()

	store, mock := newPostgresStore(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT EXISTS").WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	require.ErrorIs(t, store.SetActive(ctx, "missing"), recipe.ErrNotFound)

	mock.ExpectQuery("SELECT EXISTS").WithArgs("a").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec("INSERT INTO recipe_session").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.SetActive(ctx, "a"))

	mock.ExpectExec("INSERT INTO recipe_session").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.SetActive(ctx, ""))

	require.NoError(t, mock.ExpectationsWereMet())
}
