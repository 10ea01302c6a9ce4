package keys

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sealkv/internal/kv"
)

func testKey(t *testing.T, seed byte) *StoreKey {
	t.Helper()
	k, err := NewStoreKey(bytes.Repeat([]byte{seed}, KeySize))
	require.NoError(t, err)
	return k
}

func TestNewStoreKey_RejectsWrongSize(t *testing.T) {
	_, err := NewStoreKey([]byte("short"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32 bytes")
}

func TestSearchableEncryptionIsDeterministic(t *testing.T) {
	k := testKey(t, 1)

	a, err := k.EncryptTagName([]byte("color"))
	require.NoError(t, err)
	b, err := k.EncryptTagName([]byte("color"))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := k.EncryptTagName([]byte("colour"))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestSearchableEncryptionSeparatesSubkeys(t *testing.T) {
	k := testKey(t, 1)

	name, err := k.EncryptTagName([]byte("x"))
	require.NoError(t, err)
	value, err := k.EncryptTagValue([]byte("x"))
	require.NoError(t, err)
	category, err := k.EncryptCategory([]byte("x"))
	require.NoError(t, err)

	assert.NotEqual(t, name, value)
	assert.NotEqual(t, name, category)
	assert.NotEqual(t, value, category)
}

func TestDifferentKeysProduceDifferentCiphertext(t *testing.T) {
	a, err := testKey(t, 1).EncryptTagName([]byte("color"))
	require.NoError(t, err)
	b, err := testKey(t, 2).EncryptTagName([]byte("color"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestForProfile(t *testing.T) {
	k := testKey(t, 1)

	p1, err := k.ForProfile("alpha")
	require.NoError(t, err)
	p1again, err := k.ForProfile("alpha")
	require.NoError(t, err)
	p2, err := k.ForProfile("beta")
	require.NoError(t, err)

	a, _ := p1.EncryptName([]byte("n"))
	b, _ := p1again.EncryptName([]byte("n"))
	c, _ := p2.EncryptName([]byte("n"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestEntryRoundTrip(t *testing.T) {
	k := testKey(t, 7)
	entry := kv.Entry{
		Category: "credential",
		Name:     "alice",
		Value:    []byte("s3cret"),
		Tags: []kv.EntryTag{
			{Name: "color", Value: "red"},
			{Name: "created", Value: "2024", Plaintext: true},
		},
	}

	enc, encTags, err := k.EncryptEntry(context.Background(), entry)
	require.NoError(t, err)
	require.Len(t, encTags, 2)
	assert.NotContains(t, string(enc.Value), "s3cret")
	assert.Equal(t, []byte("2024"), encTags[1].Value)
	assert.True(t, encTags[1].Plaintext)
	assert.NotEqual(t, []byte("red"), encTags[0].Value)

	got, err := k.DecryptEntry(enc, encTags)
	require.NoError(t, err)
	assert.Equal(t, entry, got)
}

func TestEncryptEntry_NoTagsYieldsNil(t *testing.T) {
	k := testKey(t, 7)
	_, encTags, err := k.EncryptEntry(context.Background(), kv.Entry{Category: "c", Name: "n"})
	require.NoError(t, err)
	assert.Nil(t, encTags)
}

func TestEncryptValue_RandomNonce(t *testing.T) {
	k := testKey(t, 3)
	a, err := k.EncryptValue([]byte("c"), []byte("n"), []byte("v"))
	require.NoError(t, err)
	b, err := k.EncryptValue([]byte("c"), []byte("n"), []byte("v"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecryptEntry_RejectsSwappedValue(t *testing.T) {
	k := testKey(t, 3)
	e1, _, err := k.EncryptEntry(context.Background(), kv.Entry{Category: "c", Name: "one", Value: []byte("1")})
	require.NoError(t, err)
	e2, _, err := k.EncryptEntry(context.Background(), kv.Entry{Category: "c", Name: "two", Value: []byte("2")})
	require.NoError(t, err)

	e1.Value = e2.Value
	_, err = k.DecryptEntry(e1, nil)
	require.ErrorIs(t, err, ErrDecrypt)
}

func TestDecrypt_WrongKey(t *testing.T) {
	enc, _, err := testKey(t, 1).EncryptEntry(context.Background(), kv.Entry{Category: "c", Name: "n", Value: []byte("v")})
	require.NoError(t, err)

	_, err = testKey(t, 2).DecryptEntry(enc, nil)
	require.ErrorIs(t, err, ErrDecrypt)
}

func TestDecrypt_Truncated(t *testing.T) {
	k := testKey(t, 1)
	_, err := k.DecryptTag(kv.EncEntryTag{Name: []byte("tiny")})
	require.ErrorIs(t, err, ErrDecrypt)
}
