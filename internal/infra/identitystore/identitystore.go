// Package identitystore persists the opaque last-connected-at continuation
// token across process restarts, in a single bbolt bucket/key pair. This is
// identity bookkeeping only (it never stores message payloads), so it does
// not conflict with the core's "no message persistence" design.
package identitystore

import (
	"time"

	"github.com/go-faster/errors"
	"go.etcd.io/bbolt"

	"wsguardian/internal/infra/storage"
)

var (
	bucketName = []byte("identity")
	tokenKey   = []byte("last_connected_at")
)

const openTimeout = 1 * time.Second

// Load opens path and returns the persisted token, or "" if the bucket/key
// does not exist yet (a fresh store, not an error).
func Load(path string) (string, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return "", errors.Wrap(err, "open identity store")
	}
	defer db.Close()

	var token string
	err = db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return nil
		}
		token = string(bucket.Get(tokenKey))
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "read identity store")
	}
	return token, nil
}

// Save writes token to path, creating the bucket on first use.
func Save(path, token string) error {
	if err := storage.EnsureDir(path); err != nil {
		return errors.Wrap(err, "ensure identity store dir")
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return errors.Wrap(err, "open identity store")
	}
	defer db.Close()

	return db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return errors.Wrap(err, "create identity bucket")
		}
		return bucket.Put(tokenKey, []byte(token))
	})
}
