// Package models holds the revocation status list domain objects. A status
// list is a compact bitstring where each registered credential owns one bit;
// a set bit means revoked. Bits are monotonic: once set, never cleared.
package models

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	id "veritas/pkg/domain"
)

// StatusList is one bitstring registry. One list is active at a time; when
// it reaches capacity a new list is opened and becomes active.
type StatusList struct {
	ID           id.StatusListID
	Bits         []byte
	Size         int
	NextIndex    int
	RevokedCount int
	Digest       string
	UpdatedAt    time.Time
}

// NewStatusList allocates an empty list with the given bit capacity.
func NewStatusList(capacity int, now time.Time) StatusList {
	list := StatusList{
		ID:        id.NewStatusListID(),
		Bits:      make([]byte, (capacity+7)/8),
		Size:      capacity,
		UpdatedAt: now,
	}
	list.Digest = list.ComputeDigest()
	return list
}

// Full reports whether every index has been allocated.
func (l StatusList) Full() bool {
	return l.NextIndex >= l.Size
}

// Bit returns the revocation bit at the given index.
func (l StatusList) Bit(index int) bool {
	if index < 0 || index >= l.Size {
		return false
	}
	return l.Bits[index/8]&(1<<(uint(index)%8)) != 0
}

// SetBit sets the revocation bit at the given index. Bits are never cleared.
func (l *StatusList) SetBit(index int) {
	l.Bits[index/8] |= 1 << (uint(index) % 8)
}

// ComputeDigest hashes the raw bitstring. Recomputed on every mutation so
// consumers can detect a stale or tampered export.
func (l StatusList) ComputeDigest() string {
	sum := sha256.Sum256(l.Bits)
	return hex.EncodeToString(sum[:])
}

// EncodedBitstring returns the base64url (unpadded) form of the raw bits for
// bit-exact external consumption.
func (l StatusList) EncodedBitstring() string {
	return base64.RawURLEncoding.EncodeToString(l.Bits)
}

// Clone returns a deep copy so callers can mutate without aliasing the
// store's slice.
func (l StatusList) Clone() StatusList {
	bits := make([]byte, len(l.Bits))
	copy(bits, l.Bits)
	out := l
	out.Bits = bits
	return out
}

// StatusEntry assigns one credential to one bit of one list. Created at
// registration, mutated only by revocation, never deleted.
type StatusEntry struct {
	CredentialID id.CredentialID
	ListID       id.StatusListID
	Index        int
	Revoked      bool
	UpdatedAt    time.Time
}

// RegistrationResult reports the assignment for a registered credential.
type RegistrationResult struct {
	ListID id.StatusListID
	Index  int
}

// RevocationResult reports the outcome of a revoke call.
type RevocationResult struct {
	Entry          StatusEntry
	AlreadyRevoked bool
}
