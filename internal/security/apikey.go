package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/scrypt"
)

const hashScheme = "scrypt"

// KeyParams are the scrypt cost parameters encoded into every key hash
type KeyParams struct {
	N       int // CPU/memory cost, a power of two
	R       int // block size
	P       int // parallelization
	KeyLen  int // derived key length in bytes
	SaltLen int // random salt length in bytes
}

// DefaultKeyParams returns the OWASP minimum scrypt parameters
func DefaultKeyParams() KeyParams {
	return KeyParams{
		N:       32768,
		R:       8,
		P:       1,
		KeyLen:  32,
		SaltLen: 16,
	}
}

// KeyHash is a parsed "scrypt$N$r$p$salt$sum" API key hash
type KeyHash struct {
	Params KeyParams
	Salt   []byte
	Sum    []byte
}

var encoding = base64.RawStdEncoding

// HashAPIKey hashes key with DefaultKeyParams and a random salt
func HashAPIKey(key string) (string, error) {
	return HashAPIKeyWithParams(key, DefaultKeyParams())
}

// HashAPIKeyWithParams hashes key with the given cost parameters
func HashAPIKeyWithParams(key string, params KeyParams) (string, error) {
	if key == "" {
		return "", errors.New("API key must not be empty")
	}
	salt := make([]byte, params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	sum, err := scrypt.Key([]byte(key), salt, params.N, params.R, params.P, params.KeyLen)
	if err != nil {
		return "", fmt.Errorf("failed to derive key hash: %w", err)
	}
	return KeyHash{Params: params, Salt: salt, Sum: sum}.String(), nil
}

// ParseKeyHash parses the output of HashAPIKey
func ParseKeyHash(s string) (KeyHash, error) {
	parts := strings.Split(strings.TrimSpace(s), "$")
	if len(parts) != 6 || parts[0] != hashScheme {
		return KeyHash{}, fmt.Errorf("expected %s$N$r$p$salt$sum", hashScheme)
	}

	var nums [3]int
	for i, p := range parts[1:4] {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			return KeyHash{}, fmt.Errorf("invalid scrypt parameter %q", p)
		}
		nums[i] = n
	}
	salt, err := encoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return KeyHash{}, fmt.Errorf("invalid salt encoding")
	}
	sum, err := encoding.DecodeString(parts[5])
	if err != nil || len(sum) == 0 {
		return KeyHash{}, fmt.Errorf("invalid hash encoding")
	}

	return KeyHash{
		Params: KeyParams{N: nums[0], R: nums[1], P: nums[2], KeyLen: len(sum), SaltLen: len(salt)},
		Salt:   salt,
		Sum:    sum,
	}, nil
}

// String encodes the hash for configuration files
func (h KeyHash) String() string {
	return fmt.Sprintf("%s$%d$%d$%d$%s$%s", hashScheme,
		h.Params.N, h.Params.R, h.Params.P,
		encoding.EncodeToString(h.Salt), encoding.EncodeToString(h.Sum))
}

// Matches reports whether key derives to this hash
func (h KeyHash) Matches(key string) bool {
	sum, err := scrypt.Key([]byte(key), h.Salt, h.Params.N, h.Params.R, h.Params.P, len(h.Sum))
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(sum, h.Sum) == 1
}

type client struct {
	name string
	hash KeyHash
}

// KeyVerifier checks presented API keys against configured hashes.
// Keys that verified once are remembered by their SHA-256 digest so the
// scrypt cost is paid only on first use.
type KeyVerifier struct {
	clients []client

	mu       sync.RWMutex
	verified map[[sha256.Size]byte]string
}

// NewKeyVerifier builds a verifier from client name to key hash
func NewKeyVerifier(hashes map[string]string) (*KeyVerifier, error) {
	v := &KeyVerifier{verified: make(map[[sha256.Size]byte]string)}
	for name, encoded := range hashes {
		h, err := ParseKeyHash(encoded)
		if err != nil {
			return nil, fmt.Errorf("api key for %s: %w", name, err)
		}
		v.clients = append(v.clients, client{name: name, hash: h})
	}
	sort.Slice(v.clients, func(i, j int) bool { return v.clients[i].name < v.clients[j].name })
	return v, nil
}

// Enabled reports whether any key is configured
func (v *KeyVerifier) Enabled() bool {
	return v != nil && len(v.clients) > 0
}

// Verify returns the client owning key
func (v *KeyVerifier) Verify(key string) (string, bool) {
	if !v.Enabled() || key == "" {
		return "", false
	}
	digest := sha256.Sum256([]byte(key))

	v.mu.RLock()
	name, ok := v.verified[digest]
	v.mu.RUnlock()
	if ok {
		return name, true
	}

	for _, c := range v.clients {
		if c.hash.Matches(key) {
			v.mu.Lock()
			v.verified[digest] = c.name
			v.mu.Unlock()
			return c.name, true
		}
	}
	return "", false
}
