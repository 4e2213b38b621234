package sealed_test

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/storage"
	"github.com/jrsteele09/go-auth-client/storage/memory"
	"github.com/jrsteele09/go-auth-client/storage/sealed"
)

func testKey(b byte) [32]byte {
	var k [32]byte
	for i := range k {
		k[i] = b
	}
	return k
}

func TestSealed_RoundTrip(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	s := sealed.New(inner, testKey(1))

	require.NoError(t, s.Set(ctx, "k", `{"refresh_token":"secret"}`))

	raw, err := inner.Get(ctx, "k")
	require.NoError(t, err)
	require.NotContains(t, raw, "secret")

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, `{"refresh_token":"secret"}`, v)

	v, err = s.GetSync("k")
	require.NoError(t, err)
	require.Equal(t, `{"refresh_token":"secret"}`, v)

	require.NoError(t, s.Remove(ctx, "k"))
	_, err = s.Get(ctx, "k")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSealed_TamperedOrForeignValuesReadAsMissing(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	s := sealed.New(inner, testKey(1))

	require.NoError(t, s.Set(ctx, "k", "value"))
	other := sealed.New(inner, testKey(2))
	_, err := other.Get(ctx, "k")
	require.ErrorIs(t, err, storage.ErrNotFound)

	raw, err := inner.Get(ctx, "k")
	require.NoError(t, err)
	box, err := base64.StdEncoding.DecodeString(raw)
	require.NoError(t, err)
	box[len(box)-1] ^= 0xff
	require.NoError(t, inner.Set(ctx, "k", base64.StdEncoding.EncodeToString(box)))
	_, err = s.Get(ctx, "k")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, inner.Set(ctx, "k", "plain text"))
	_, err = s.Get(ctx, "k")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSealed_WatchDecrypts(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewBackend()
	tab1 := sealed.New(backend.Open(), testKey(3))
	rawTab := backend.Open()
	tab2 := sealed.New(backend.Open(), testKey(3))

	var seen []storage.Change
	cancel, err := tab2.Watch("k", func(c storage.Change) { seen = append(seen, c) })
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, tab1.Set(ctx, "k", "v1"))
	require.NoError(t, rawTab.Set(ctx, "k", "garbage"))
	require.NoError(t, tab1.Remove(ctx, "k"))

	require.Equal(t, []storage.Change{
		{Key: "k", NewValue: "v1"},
		{Key: "k", Deleted: true},
		{Key: "k", Deleted: true},
	}, seen)
}

func TestKeyFromBase64(t *testing.T) {
	k := testKey(7)
	got, err := sealed.KeyFromBase64(base64.StdEncoding.EncodeToString(k[:]))
	require.NoError(t, err)
	require.Equal(t, k, got)

	_, err = sealed.KeyFromBase64(base64.StdEncoding.EncodeToString([]byte(strings.Repeat("a", 16))))
	require.Error(t, err)
}
