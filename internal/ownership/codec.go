package ownership

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// SecretBytes is the entropy carried by every issued secret (256 bits).
const SecretBytes = 32

var errShortRandomRead = errors.New("ownership: short random read")

// Grant pairs a freshly issued secret with the digest that is persisted in its place.
// The Secret is handed to the submitter once and never stored.
type Grant struct {
	Secret string
	Digest string
}

// Codec issues and verifies ownership secrets.
type Codec struct {
	random io.Reader
}

// NewCodec returns a codec backed by crypto/rand.
func NewCodec() *Codec {
	return &Codec{random: rand.Reader}
}

// NewCodecWithReader returns a codec drawing entropy from the supplied reader.
func NewCodecWithReader(random io.Reader) *Codec {
	if random == nil {
		random = rand.Reader
	}
	return &Codec{random: random}
}

// Issue mints a new secret rendered as a 64 character hex token together with its digest.
func (c *Codec) Issue() (Grant, error) {
	buffer := make([]byte, SecretBytes)
	read, err := io.ReadFull(c.random, buffer)
	if err != nil {
		return Grant{}, fmt.Errorf("ownership: read random: %w", err)
	}
	if read != SecretBytes {
		return Grant{}, errShortRandomRead
	}
	secret := hex.EncodeToString(buffer)
	return Grant{Secret: secret, Digest: Digest(secret)}, nil
}

// Verify reports whether candidate hashes to storedDigest.
// A missing digest or an empty candidate never verifies.
func (c *Codec) Verify(candidate string, storedDigest *string) bool {
	return Verify(candidate, storedDigest)
}

// Digest returns the hex-encoded SHA-256 of secret.
func Digest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the digest of candidate and compares it in constant time.
func Verify(candidate string, storedDigest *string) bool {
	if storedDigest == nil || *storedDigest == "" || candidate == "" {
		return false
	}
	computed := Digest(candidate)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(*storedDigest)) == 1
}
