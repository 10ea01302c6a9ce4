package keys

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/roach88/sealkv/internal/kv"
)

// KeySize is the size of master keys and every derived subkey.
const KeySize = chacha20poly1305.KeySize

const infoPrefix = "sealkv/v1/"

// ErrDecrypt is returned when a ciphertext fails authentication.
var ErrDecrypt = errors.New("decryption failed")

// StoreKey holds the derived subkeys for one profile.
//
// Thread-safety: StoreKey is immutable after construction and safe for
// concurrent use.
type StoreKey struct {
	master      [KeySize]byte
	categoryKey [KeySize]byte
	nameKey     [KeySize]byte
	valueKey    [KeySize]byte
	tagNameKey  [KeySize]byte
	tagValueKey [KeySize]byte
	hmacKey     [KeySize]byte
}

// NewStoreKey derives a StoreKey from a 32-byte master key.
func NewStoreKey(master []byte) (*StoreKey, error) {
	if len(master) != KeySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", KeySize, len(master))
	}
	k := &StoreKey{}
	copy(k.master[:], master)

	subkeys := []struct {
		label string
		dst   *[KeySize]byte
	}{
		{"category", &k.categoryKey},
		{"name", &k.nameKey},
		{"value", &k.valueKey},
		{"tag_name", &k.tagNameKey},
		{"tag_value", &k.tagValueKey},
		{"hmac", &k.hmacKey},
	}
	for _, sk := range subkeys {
		if err := derive(master, sk.label, sk.dst[:]); err != nil {
			return nil, err
		}
	}
	return k, nil
}

// ForProfile derives an independent StoreKey for the named profile.
func (k *StoreKey) ForProfile(profile string) (*StoreKey, error) {
	var sub [KeySize]byte
	if err := derive(k.master[:], "profile/"+profile, sub[:]); err != nil {
		return nil, err
	}
	return NewStoreKey(sub[:])
}

func derive(master []byte, label string, dst []byte) error {
	r := hkdf.New(sha256.New, master, nil, []byte(infoPrefix+label))
	if _, err := io.ReadFull(r, dst); err != nil {
		return fmt.Errorf("derive %s key: %w", label, err)
	}
	return nil
}

// EncryptCategory returns the searchable ciphertext of an entry category.
func (k *StoreKey) EncryptCategory(category []byte) ([]byte, error) {
	return k.sealSearchable(k.categoryKey[:], category)
}

// EncryptName returns the searchable ciphertext of an entry name.
func (k *StoreKey) EncryptName(name []byte) ([]byte, error) {
	return k.sealSearchable(k.nameKey[:], name)
}

// EncryptTagName implements TagEncryptor.
func (k *StoreKey) EncryptTagName(name []byte) ([]byte, error) {
	return k.sealSearchable(k.tagNameKey[:], name)
}

// EncryptTagValue implements TagEncryptor.
func (k *StoreKey) EncryptTagValue(value []byte) ([]byte, error) {
	return k.sealSearchable(k.tagValueKey[:], value)
}

// EncryptValue seals an entry value with a random nonce, bound to the record's
// encrypted category and name.
func (k *StoreKey) EncryptValue(encCategory, encName, value []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(k.valueKey[:])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(value)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, value, valueAAD(encCategory, encName)), nil
}

// EncryptEntry implements EntryEncryptor synchronously.
func (k *StoreKey) EncryptEntry(_ context.Context, entry kv.Entry) (kv.EncEntry, []kv.EncEntryTag, error) {
	return k.encryptEntry(entry)
}

func (k *StoreKey) encryptEntry(entry kv.Entry) (kv.EncEntry, []kv.EncEntryTag, error) {
	encCategory, err := k.EncryptCategory([]byte(entry.Category))
	if err != nil {
		return kv.EncEntry{}, nil, fmt.Errorf("encrypt category: %w", err)
	}
	encName, err := k.EncryptName([]byte(entry.Name))
	if err != nil {
		return kv.EncEntry{}, nil, fmt.Errorf("encrypt name: %w", err)
	}
	encValue, err := k.EncryptValue(encCategory, encName, entry.Value)
	if err != nil {
		return kv.EncEntry{}, nil, fmt.Errorf("encrypt value: %w", err)
	}

	var encTags []kv.EncEntryTag
	if entry.Tags != nil {
		encTags = make([]kv.EncEntryTag, 0, len(entry.Tags))
		for _, tag := range entry.Tags {
			encTag, err := k.EncryptTag(tag)
			if err != nil {
				return kv.EncEntry{}, nil, err
			}
			encTags = append(encTags, encTag)
		}
	}

	return kv.EncEntry{Category: encCategory, Name: encName, Value: encValue}, encTags, nil
}

// EncryptTag encrypts one tag; plaintext tags keep their value in the clear.
func (k *StoreKey) EncryptTag(tag kv.EntryTag) (kv.EncEntryTag, error) {
	name, err := k.EncryptTagName([]byte(tag.Name))
	if err != nil {
		return kv.EncEntryTag{}, fmt.Errorf("encrypt tag name: %w", err)
	}
	if tag.Plaintext {
		return kv.EncEntryTag{Name: name, Value: []byte(tag.Value), Plaintext: true}, nil
	}
	value, err := k.EncryptTagValue([]byte(tag.Value))
	if err != nil {
		return kv.EncEntryTag{}, fmt.Errorf("encrypt tag value: %w", err)
	}
	return kv.EncEntryTag{Name: name, Value: value}, nil
}

// DecryptEntry reverses EncryptEntry.
func (k *StoreKey) DecryptEntry(enc kv.EncEntry, encTags []kv.EncEntryTag) (kv.Entry, error) {
	category, err := k.openSearchable(k.categoryKey[:], enc.Category)
	if err != nil {
		return kv.Entry{}, fmt.Errorf("decrypt category: %w", err)
	}
	name, err := k.openSearchable(k.nameKey[:], enc.Name)
	if err != nil {
		return kv.Entry{}, fmt.Errorf("decrypt name: %w", err)
	}
	value, err := k.decryptValue(enc.Category, enc.Name, enc.Value)
	if err != nil {
		return kv.Entry{}, fmt.Errorf("decrypt value: %w", err)
	}

	entry := kv.Entry{Category: string(category), Name: string(name), Value: value}
	if encTags != nil {
		entry.Tags = make([]kv.EntryTag, 0, len(encTags))
		for _, et := range encTags {
			tag, err := k.DecryptTag(et)
			if err != nil {
				return kv.Entry{}, err
			}
			entry.Tags = append(entry.Tags, tag)
		}
	}
	return entry, nil
}

// DecryptTag reverses EncryptTag.
func (k *StoreKey) DecryptTag(enc kv.EncEntryTag) (kv.EntryTag, error) {
	name, err := k.openSearchable(k.tagNameKey[:], enc.Name)
	if err != nil {
		return kv.EntryTag{}, fmt.Errorf("decrypt tag name: %w", err)
	}
	if enc.Plaintext {
		return kv.EntryTag{Name: string(name), Value: string(enc.Value), Plaintext: true}, nil
	}
	value, err := k.openSearchable(k.tagValueKey[:], enc.Value)
	if err != nil {
		return kv.EntryTag{}, fmt.Errorf("decrypt tag value: %w", err)
	}
	return kv.EntryTag{Name: string(name), Value: string(value)}, nil
}

func (k *StoreKey) decryptValue(encCategory, encName, sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(k.valueKey[:])
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrDecrypt
	}
	nonce, ct := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	out, err := aead.Open(nil, nonce, ct, valueAAD(encCategory, encName))
	if err != nil {
		return nil, ErrDecrypt
	}
	return out, nil
}

// sealSearchable: nonce = HMAC-SHA256(hmac, key-label || plaintext)[:12].
// The subkey is mixed into the MAC so equal plaintexts under different subkeys
// do not share a nonce prefix.
func (k *StoreKey) sealSearchable(key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha256.New, k.hmacKey[:])
	mac.Write(key)
	mac.Write(plaintext)
	nonce := mac.Sum(nil)[:aead.NonceSize()]

	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, nil), nil
}

func (k *StoreKey) openSearchable(key, sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrDecrypt
	}
	out, err := aead.Open(nil, sealed[:aead.NonceSize()], sealed[aead.NonceSize():], nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return out, nil
}

func valueAAD(encCategory, encName []byte) []byte {
	aad := make([]byte, 0, len(encCategory)+len(encName))
	aad = append(aad, encCategory...)
	return append(aad, encName...)
}
