package prefs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	skerrors "github.com/AltairaLabs/SightKit/errors"
)

func setupRedisStore(t *testing.T, opts ...RedisOption) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, opts...), mr
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"en", "en", true},
		{"EN", "en", true},
		{"en-US", "en", true},
		{"hi", "hi", true},
		{"hi-IN", "hi", true},
		{"fr", "", false},
		{"", "", false},
		{"not a tag!", "", false},
	}
	for _, tt := range tests {
		got, err := Normalize(tt.in)
		if tt.ok {
			require.NoError(t, err, tt.in)
			assert.Equal(t, tt.want, got)
		} else {
			assert.ErrorIs(t, err, ErrUnsupportedLanguage, tt.in)
		}
	}
}

func TestSupportedLanguages(t *testing.T) {
	langs := SupportedLanguages()
	require.Len(t, langs, 2)
	assert.Equal(t, "en", langs[0].Code)
	assert.Equal(t, "hi", langs[1].Code)

	langs[0].Code = "xx"
	assert.Equal(t, "en", SupportedLanguages()[0].Code)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	lang, err := s.Language(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultLanguage, lang)

	require.NoError(t, s.SetLanguage(ctx, "hi-IN"))
	lang, err = s.Language(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hi", lang)

	assert.ErrorIs(t, s.SetLanguage(ctx, "de"), ErrUnsupportedLanguage)
	lang, _ = s.Language(ctx)
	assert.Equal(t, "hi", lang)
}

func TestRedisStore_DefaultWhenMissing(t *testing.T) {
	store, _ := setupRedisStore(t)

	lang, err := store.Language(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultLanguage, lang)
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store, mr := setupRedisStore(t, WithPrefix("app"), WithUser("u1"))
	ctx := context.Background()

	require.NoError(t, store.SetLanguage(ctx, "HI"))
	got, err := mr.Get("app:prefs:u1:targetLanguage")
	require.NoError(t, err)
	assert.Equal(t, "hi", got)

	lang, err := store.Language(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hi", lang)
}

func TestRedisStore_RejectsUnsupported(t *testing.T) {
	store, mr := setupRedisStore(t)

	assert.ErrorIs(t, store.SetLanguage(context.Background(), "ja"), ErrUnsupportedLanguage)
	assert.False(t, mr.Exists("sightkit:prefs:default:targetLanguage"))
}

func TestRedisStore_StaleValueReadsAsDefault(t *testing.T) {
	store, mr := setupRedisStore(t)
	require.NoError(t, mr.Set("sightkit:prefs:default:targetLanguage", "klingon"))

	lang, err := store.Language(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultLanguage, lang)
}

func TestRedisStore_TTL(t *testing.T) {
	store, mr := setupRedisStore(t, WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, store.SetLanguage(ctx, "hi"))
	mr.FastForward(2 * time.Minute)

	lang, err := store.Language(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultLanguage, lang)
}

func TestRedisStore_ServerDown(t *testing.T) {
	store, mr := setupRedisStore(t)
	mr.Close()
	ctx := context.Background()

	lang, err := store.Language(ctx)
	require.Error(t, err)
	assert.True(t, skerrors.IsKind(err, skerrors.KindStorage))
	assert.Equal(t, DefaultLanguage, lang)

	err = store.SetLanguage(ctx, "hi")
	require.Error(t, err)
	assert.True(t, skerrors.IsKind(err, skerrors.KindStorage))
}
