package identity

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Registry answers whether an address belongs to a verified participant.
type Registry interface {
	IsVerified(addr [20]byte) (bool, error)
}

// Record is a registered participant.
type Record struct {
	Address   [20]byte `json:"address"`
	Alias     string   `json:"alias"`
	Verified  bool     `json:"verified"`
	CreatedAt int64    `json:"createdAt"`
}

const (
	aliasMinLength = 3
	aliasMaxLength = 32
)

var (
	aliasPattern = regexp.MustCompile(`^[a-z0-9._-]+$`)

	// ErrInvalidAlias is returned when the supplied alias does not satisfy
	// the naming constraints.
	ErrInvalidAlias = errors.New("identity: invalid alias")
	// ErrAliasTaken is returned when the alias is already owned by another
	// address.
	ErrAliasTaken = errors.New("identity: alias already registered")
	// ErrNotFound is returned when the address has no identity.
	ErrNotFound = errors.New("identity: record not found")
)

// NormalizeAlias lowercases and validates the supplied alias.
func NormalizeAlias(alias string) (string, error) {
	lower := strings.ToLower(strings.TrimSpace(alias))
	if n := len(lower); n < aliasMinLength || n > aliasMaxLength {
		return "", fmt.Errorf("%w: must be between %d and %d characters", ErrInvalidAlias, aliasMinLength, aliasMaxLength)
	}
	if !aliasPattern.MatchString(lower) {
		return "", fmt.Errorf("%w: allowed characters are [a-z0-9._-]", ErrInvalidAlias)
	}
	return lower, nil
}

// MemoryRegistry keeps identities in process memory.
type MemoryRegistry struct {
	mu      sync.RWMutex
	records map[[20]byte]Record
	aliases map[string][20]byte
}

// NewMemoryRegistry returns an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{records: make(map[[20]byte]Record), aliases: make(map[string][20]byte)}
}

// CreateIdentity registers addr under alias. Registering the same pair again
// is a no-op.
func (r *MemoryRegistry) CreateIdentity(addr [20]byte, alias string, verified bool, now int64) (Record, error) {
	normalized, err := NormalizeAlias(alias)
	if err != nil {
		return Record{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.aliases[normalized]; ok && owner != addr {
		return Record{}, ErrAliasTaken
	}
	if prev, ok := r.records[addr]; ok && prev.Alias != normalized {
		delete(r.aliases, prev.Alias)
	}
	rec := Record{Address: addr, Alias: normalized, Verified: verified, CreatedAt: now}
	r.records[addr] = rec
	r.aliases[normalized] = addr
	return rec, nil
}

// SetVerified flips the verification flag of an existing identity.
func (r *MemoryRegistry) SetVerified(addr [20]byte, verified bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[addr]
	if !ok {
		return ErrNotFound
	}
	rec.Verified = verified
	r.records[addr] = rec
	return nil
}

// Identity returns the record for addr.
func (r *MemoryRegistry) Identity(addr [20]byte) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[addr]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// IsVerified implements Registry.
func (r *MemoryRegistry) IsVerified(addr [20]byte) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.records[addr].Verified, nil
}
