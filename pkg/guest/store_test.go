package guest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Load(ctx, "guest-1")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, "guest-1", []byte(`{"items":[]}`)))
	require.NoError(t, store.Save(ctx, "guest-1", []byte(`{"items":[{"id":"local-1"}]}`)))

	got, err := store.Load(ctx, "guest-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[{"id":"local-1"}]}`, string(got))

	_, err = store.Load(ctx, "guest-2")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Delete(ctx, "guest-1"))
	require.NoError(t, store.Delete(ctx, "guest-1"))
	_, err = store.Load(ctx, "guest-1")
	require.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, store.Save(ctx, "../etc/passwd", []byte("x")))
	assert.NoError(t, store.Ping(ctx))
}

func TestFileStore(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "carts"), 0)
	require.NoError(t, err)
	exerciseStore(t, store)
}

func TestFileStoreExpiresByModTime(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "guest-1", []byte(`{"items":[]}`)))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "guest-1.json"), old, old))

	_, err = store.Load(ctx, "guest-1")
	require.ErrorIs(t, err, ErrNotFound)
	_, statErr := os.Stat(filepath.Join(dir, "guest-1.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&CartRow{}))
	return conn
}

func TestSQLStore(t *testing.T) {
	store, err := NewSQLStore(newSQLiteDB(t), time.Hour)
	require.NoError(t, err)
	exerciseStore(t, store)
}

func TestSQLStoreExpiry(t *testing.T) {
	store, err := NewSQLStore(newSQLiteDB(t), time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }
	require.NoError(t, store.Save(ctx, "guest-1", []byte(`{"items":[]}`)))
	require.NoError(t, store.Save(ctx, "guest-2", []byte(`{"items":[]}`)))

	store.now = func() time.Time { return base.Add(2 * time.Hour) }
	_, err = store.Load(ctx, "guest-1")
	require.ErrorIs(t, err, ErrNotFound)

	purged, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

type fakeRedis struct {
	data map[string]string
	ttls map[string]time.Duration
}

func (f *fakeRedis) GetEx(_ context.Context, key string, ttl time.Duration) (string, error) {
	v, ok := f.data[key]
	if !ok {
		return "", goredis.Nil
	}
	f.ttls[key] = ttl
	return v, nil
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeRedis) Ping(context.Context) error { return nil }

func (f *fakeRedis) GuestCartKey(profileID string) string { return "mh:guest_cart:" + profileID }

func TestRedisStore(t *testing.T) {
	fake := &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
	store, err := NewRedisStore(fake, 24*time.Hour)
	require.NoError(t, err)
	exerciseStore(t, store)

	require.NoError(t, store.Save(context.Background(), "guest-3", []byte("{}")))
	assert.Equal(t, 24*time.Hour, fake.ttls["mh:guest_cart:guest-3"])

	fake.ttls["mh:guest_cart:guest-3"] = time.Minute
	_, err = store.Load(context.Background(), "guest-3")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, fake.ttls["mh:guest_cart:guest-3"], "load should slide the expiry")
}

func TestValidateProfileID(t *testing.T) {
	assert.NoError(t, ValidateProfileID("5f1b7c2e-4d7a-4a8e-9c1d-0f3b2a1e9d88"))
	assert.Error(t, ValidateProfileID(""))
	assert.Error(t, ValidateProfileID("a/b"))
}
