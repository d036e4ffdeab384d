package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes passwords with bcrypt. The password is first keyed with the
// server-side pepper through HMAC-SHA256, which keeps bcrypt's input at a
// fixed 44 bytes whatever the password length or encoding.
type Hasher struct {
	Cost   int
	Pepper string
}

func NewHasher(cost int, pepper string) Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = 12
	}
	return Hasher{Cost: cost, Pepper: pepper}
}

// prehash returns base64(HMAC-SHA256(pepper, password)). The base64 form has
// no NUL bytes, which bcrypt would otherwise treat as a terminator.
func (h Hasher) prehash(password string) []byte {
	mac := hmac.New(sha256.New, []byte(h.Pepper))
	mac.Write([]byte(password))
	sum := mac.Sum(nil)
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum)
	return out
}

func (h Hasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword(h.prehash(password), h.Cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify compares in constant time. Any comparison error counts as a mismatch.
func (h Hasher) Verify(hash, password string) bool {
	if hash == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), h.prehash(password))
	return err == nil
}

// NeedsRehash reports whether hash was produced with a different cost.
func (h Hasher) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost != h.Cost
}
