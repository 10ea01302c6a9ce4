package keys

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

// KeyMethod selects how a pass key becomes a master key.
type KeyMethod string

const (
	// MethodRaw treats the pass key as an encoded 32-byte key.
	MethodRaw KeyMethod = "raw"

	// MethodArgon2iMod stretches a passphrase with moderate Argon2 parameters.
	MethodArgon2iMod KeyMethod = "kdf:argon2i:mod"

	// MethodArgon2iInt stretches a passphrase with interactive Argon2 parameters.
	MethodArgon2iInt KeyMethod = "kdf:argon2i:int"
)

// SaltSize is the size of the per-store KDF salt.
const SaltSize = 16

type argonParams struct {
	time    uint32
	memory  uint32
	threads uint8
}

var argonLevels = map[KeyMethod]argonParams{
	MethodArgon2iMod: {time: 3, memory: 256 * 1024, threads: 1},
	MethodArgon2iInt: {time: 2, memory: 64 * 1024, threads: 1},
}

// ParseKeyMethod validates a key method name. An empty name selects raw.
func ParseKeyMethod(s string) (KeyMethod, error) {
	switch m := KeyMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return MethodRaw, nil
	case MethodRaw, MethodArgon2iMod, MethodArgon2iInt:
		return m, nil
	default:
		return "", fmt.Errorf("unknown key method %q", s)
	}
}

// NeedsSalt reports whether the method consumes a stored salt.
func (m KeyMethod) NeedsSalt() bool {
	_, ok := argonLevels[m]
	return ok
}

// DeriveMasterKey turns a pass key into a 32-byte master key.
// salt is ignored for MethodRaw.
func DeriveMasterKey(method KeyMethod, passKey string, salt []byte) ([]byte, error) {
	if method == MethodRaw {
		return DecodeRawKey(passKey)
	}
	params, ok := argonLevels[method]
	if !ok {
		return nil, fmt.Errorf("unknown key method %q", method)
	}
	if passKey == "" {
		return nil, fmt.Errorf("%s requires a non-empty pass key", method)
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("%s requires a %d-byte salt, got %d", method, SaltSize, len(salt))
	}
	return argon2.Key([]byte(passKey), salt, params.time, params.memory, params.threads, KeySize), nil
}

// OpenStoreKey derives the master key and builds a StoreKey from it.
func OpenStoreKey(method KeyMethod, passKey string, salt []byte) (*StoreKey, error) {
	master, err := DeriveMasterKey(method, passKey, salt)
	if err != nil {
		return nil, err
	}
	return NewStoreKey(master)
}

// DecodeRawKey accepts a 32-byte key as unpadded or padded base64 (std or URL)
// or as hex.
func DecodeRawKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("raw key is empty")
	}
	decoders := []func(string) ([]byte, error){
		base64.RawURLEncoding.DecodeString,
		base64.URLEncoding.DecodeString,
		base64.RawStdEncoding.DecodeString,
		base64.StdEncoding.DecodeString,
		hex.DecodeString,
	}
	for _, dec := range decoders {
		if b, err := dec(s); err == nil && len(b) == KeySize {
			return b, nil
		}
	}
	return nil, fmt.Errorf("raw key must encode exactly %d bytes", KeySize)
}

// GenerateRawKey returns a new random raw key, base64url encoded.
func GenerateRawKey() (string, error) {
	b := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateSalt returns a new random KDF salt.
func GenerateSalt() ([]byte, error) {
	b := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return b, nil
}
