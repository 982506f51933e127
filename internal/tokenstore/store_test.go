package tokenstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/Behnamfe76/ticket-portal/internal/config"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	got, err := s.Get(ctx)
	require.NoError(t, err)
	require.Empty(t, got)

	require.NoError(t, s.Set(ctx, "t1"))
	require.NoError(t, s.Set(ctx, "t2"))
	got, err = s.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "t2", got)

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx))
	got, err = s.Get(ctx)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestMemory(t *testing.T) {
	t.Parallel()
	exerciseStore(t, NewMemory())
}

func TestFile(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "cfg")
	s := NewFile(dir, "")
	exerciseStore(t, s)

	require.NoError(t, s.Set(context.Background(), "persisted"))
	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened := NewFile(dir, "")
	got, err := reopened.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "persisted", got)
}

func TestFile_ScopedPathsDoNotCollide(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	a, b := NewFile(dir, "visitor-a"), NewFile(dir, "../visitor-b")
	require.NotEqual(t, a.Path(), b.Path())
	require.Equal(t, dir, filepath.Dir(b.Path()))

	require.NoError(t, a.Set(context.Background(), "ta"))
	got, err := b.Get(context.Background())
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestFile_CorruptDocument(t *testing.T) {
	t.Parallel()
	s := NewFile(t.TempDir(), "")
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o600))
	_, err := s.Get(context.Background())
	require.Error(t, err)
}

func TestRedis(t *testing.T) {
	t.Parallel()
	client, mock := redismock.NewClientMock()
	s := NewRedis(client, "v1")
	key := "ticket-portal:credential:v1:accessToken"
	require.Equal(t, key, s.Key())

	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, "t1", 0).SetVal("OK")
	mock.ExpectGet(key).SetVal("t1")
	mock.ExpectDel(key).SetVal(1)
	mock.ExpectGet(key).SetErr(errors.New("READONLY"))

	ctx := context.Background()
	got, err := s.Get(ctx)
	require.NoError(t, err)
	require.Empty(t, got)
	require.NoError(t, s.Set(ctx, "t1"))
	got, err = s.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "t1", got)
	require.NoError(t, s.Clear(ctx))
	_, err = s.Get(ctx)
	require.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres(t *testing.T) {
	t.Parallel()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgres(mock, "v1")
	ctx := context.Background()

	selectQ := regexp.QuoteMeta(`SELECT credential FROM client_credentials WHERE scope=$1 AND storage_key=$2`)
	mock.ExpectQuery(selectQ).WithArgs("v1", StorageKey).WillReturnError(pgx.ErrNoRows)
	got, err := s.Get(ctx)
	require.NoError(t, err)
	require.Empty(t, got)

	mock.ExpectExec(`INSERT INTO client_credentials`).
		WithArgs("v1", StorageKey, "t1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, s.Set(ctx, "t1"))

	mock.ExpectQuery(selectQ).WithArgs("v1", StorageKey).
		WillReturnRows(pgxmock.NewRows([]string{"credential"}).AddRow("t1"))
	got, err = s.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "t1", got)

	mock.ExpectExec(`DELETE FROM client_credentials`).
		WithArgs("v1", StorageKey).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, s.Clear(ctx))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInertStores(t *testing.T) {
	t.Parallel()
	var nilMem *Memory
	for _, s := range []Store{nilMem, NewFile("", ""), NewRedis(nil, "x"), NewPostgres(nil, "x")} {
		got, err := s.Get(context.Background())
		require.NoError(t, err)
		require.Empty(t, got)
		require.NoError(t, s.Set(context.Background(), "t"))
		require.NoError(t, s.Clear(context.Background()))
	}
}

func TestFactory_Open(t *testing.T) {
	t.Parallel()
	for driver, want := range map[string]any{
		config.DriverMemory:   &Memory{},
		config.DriverFile:     &File{},
		config.DriverRedis:    &Redis{},
		config.DriverPostgres: &Postgres{},
	} {
		s, err := Factory{Driver: driver, Dir: t.TempDir()}.Open("scope")
		require.NoError(t, err)
		require.IsType(t, want, s)
	}
	_, err := Factory{Driver: "cookie"}.Open("scope")
	require.Error(t, err)
}
