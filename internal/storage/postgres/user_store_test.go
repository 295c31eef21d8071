package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/ANANT0908/lessonwatch/internal/store"
)

func TestGetUserDecodesJSONMaps(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewUserStoreWithPool(mock)
	require.NoError(t, err)

	created := time.Unix(1700000000, 0).UTC()
	rows := pgxmock.NewRows([]string{"id", "email", "progress", "completed", "created_at"}).
		AddRow("u1", "a@example.com", []byte(`{"lesson1":55}`), []byte(`{"lesson2":true}`), created)

	mock.ExpectQuery("SELECT id, email, progress, completed, created_at").
		WithArgs("u1").
		WillReturnRows(rows)

	doc, err := s.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, "u1", doc.UserID)
	require.Equal(t, map[string]int{"lesson1": 55}, doc.Progress)
	require.Equal(t, map[string]bool{"lesson2": true}, doc.Completed)
	require.Equal(t, created, doc.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewUserStoreWithPool(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT id, email, progress, completed, created_at").
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "progress", "completed", "created_at"}))

	_, err = s.GetUser(context.Background(), "ghost")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserEncodesEmptyMapsAsObjects(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewUserStoreWithPool(mock)
	require.NoError(t, err)

	created := time.Unix(1700000000, 0).UTC()
	mock.ExpectExec("INSERT INTO users").
		WithArgs("u1", "a@example.com", []byte(`{}`), []byte(`{}`), created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = s.CreateUser(context.Background(), store.UserDocument{
		UserID:    "u1",
		Email:     "a@example.com",
		CreatedAt: created,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateFieldsUsesJSONBSetPerLeaf(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewUserStoreWithPool(mock)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE users").
		WithArgs([]string{"lesson1"}, []byte(`75`), "u1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = s.UpdateFields(context.Background(), "u1", map[string]any{"progress.lesson1": 75})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateFieldsMissingUser(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewUserStoreWithPool(mock)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE users").
		WithArgs([]string{"lesson1"}, []byte(`true`), "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = s.UpdateFields(context.Background(), "ghost", map[string]any{"completed.lesson1": true})
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateFieldsRejectsUnknownSection(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewUserStoreWithPool(mock)
	require.NoError(t, err)

	err = s.UpdateFields(context.Background(), "u1", map[string]any{"scores.lesson1": 5})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialQueries(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewUserStoreWithPool(mock)
	require.NoError(t, err)

	created := time.Unix(1700000000, 0).UTC()
	rows := pgxmock.NewRows([]string{"email", "user_id", "password_hash", "created_at"}).
		AddRow("a@example.com", "u1", []byte("hash"), created)

	mock.ExpectQuery("SELECT email, user_id, password_hash, created_at").
		WithArgs("A@Example.com").
		WillReturnRows(rows)

	cred, err := s.GetCredential(context.Background(), "A@Example.com")
	require.NoError(t, err)
	require.Equal(t, "u1", cred.UserID)

	mock.ExpectExec("INSERT INTO credentials").
		WithArgs("b@example.com", "u2", []byte("hash2"), created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = s.CreateCredential(context.Background(), store.Credential{
		Email:        "b@example.com",
		UserID:       "u2",
		PasswordHash: []byte("hash2"),
		CreatedAt:    created,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
