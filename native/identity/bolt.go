package identity

import (
	"encoding/hex"
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketIdentities = []byte("identities")
	bucketAliases    = []byte("aliases")
)

// BoltRegistry persists identities in a BoltDB file.
type BoltRegistry struct {
	db *bolt.DB
}

// OpenBoltRegistry opens (and migrates) the registry at path.
func OpenBoltRegistry(path string, options *bolt.Options) (*BoltRegistry, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketIdentities, bucketAliases} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltRegistry{db: db}, nil
}

// Close releases the underlying Bolt database handle.
func (r *BoltRegistry) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func addrKey(addr [20]byte) []byte {
	return []byte(hex.EncodeToString(addr[:]))
}

// CreateIdentity registers addr under alias. Re-registering moves the alias.
func (r *BoltRegistry) CreateIdentity(addr [20]byte, alias string, verified bool, now int64) (Record, error) {
	normalized, err := NormalizeAlias(alias)
	if err != nil {
		return Record{}, err
	}
	rec := Record{Address: addr, Alias: normalized, Verified: verified, CreatedAt: now}
	err = r.db.Update(func(tx *bolt.Tx) error {
		identities := tx.Bucket(bucketIdentities)
		aliases := tx.Bucket(bucketAliases)
		key := addrKey(addr)
		if owner := aliases.Get([]byte(normalized)); owner != nil && string(owner) != string(key) {
			return ErrAliasTaken
		}
		if raw := identities.Get(key); raw != nil {
			var prev Record
			if err := json.Unmarshal(raw, &prev); err != nil {
				return err
			}
			if prev.Alias != normalized {
				if err := aliases.Delete([]byte(prev.Alias)); err != nil {
					return err
				}
			}
		}
		payload, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := identities.Put(key, payload); err != nil {
			return err
		}
		return aliases.Put([]byte(normalized), key)
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// SetVerified flips the verification flag of an existing identity.
func (r *BoltRegistry) SetVerified(addr [20]byte, verified bool) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketIdentities)
		raw := bucket.Get(addrKey(addr))
		if raw == nil {
			return ErrNotFound
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		rec.Verified = verified
		payload, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return bucket.Put(addrKey(addr), payload)
	})
}

// Identity returns the record for addr.
func (r *BoltRegistry) Identity(addr [20]byte) (Record, error) {
	var rec Record
	err := r.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketIdentities).Get(addrKey(addr))
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, &rec)
	})
	return rec, err
}

// IsVerified implements Registry.
func (r *BoltRegistry) IsVerified(addr [20]byte) (bool, error) {
	rec, err := r.Identity(addr)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.Verified, nil
}
