package repository

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/okian/gameproof/internal/domain/model"
)

// Key layout: sub/<identity, 20 digits>/<kind>. Zero padding keeps every
// identity's keys contiguous under a prefix scan.
var submissionPrefix = []byte("sub/") //nolint:gochecknoglobals

const timestampHeader = 8

// PebbleStore persists submissions in a local Pebble database. Each value is
// an 8-byte big-endian UpdatedAt (unix nanos) followed by the zstd payload.
type PebbleStore struct {
	db    *pebble.DB
	codec *codec
	opts  storeOptions
}

// OpenPebbleStore opens or creates the database at path.
func OpenPebbleStore(path string, opts ...StoreOption) (*PebbleStore, error) {
	o := defaultStoreOptions()
	for _, opt := range opts {
		opt(&o)
	}
	cache := pebble.NewCache(16 << 20)
	defer cache.Unref()
	db, err := pebble.Open(path, &pebble.Options{
		Cache:        cache,
		MemTableSize: 16 << 20,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open pebble at %s: %w", ErrStorage, path, err)
	}
	c, err := newCodec()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PebbleStore{db: db, codec: c, opts: o}, nil
}

func identityPrefix(id model.Identity) []byte {
	return fmt.Appendf(nil, "sub/%020d/", uint64(id))
}

func blobKey(id model.Identity, kind model.BlobKind) []byte {
	return append(identityPrefix(id), string(kind)...)
}

// identityFromKey extracts the identity from sub/<id>/<kind>.
func identityFromKey(key []byte) (model.Identity, bool) {
	rest := bytes.TrimPrefix(key, submissionPrefix)
	i := bytes.IndexByte(rest, '/')
	if i < 0 {
		return 0, false
	}
	v, err := strconv.ParseUint(string(rest[:i]), 10, 64)
	if err != nil {
		return 0, false
	}
	return model.Identity(v), true
}

func (s *PebbleStore) Put(_ context.Context, id model.Identity, kind model.BlobKind, blob []byte) error {
	defer observe(BackendPebble, "put", time.Now())
	if _, err := model.ParseBlobKind(string(kind)); err != nil {
		return err
	}
	payload := s.codec.encode(blob)
	value := make([]byte, timestampHeader, timestampHeader+len(payload))
	binary.BigEndian.PutUint64(value, uint64(s.opts.now().UnixNano()))
	value = append(value, payload...)

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(blobKey(id, kind), value, nil); err != nil {
		return fmt.Errorf("%w: pebble put: %w", ErrStorage, err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("%w: pebble commit: %w", ErrStorage, err)
	}
	return nil
}

// read returns nil, zero time, nil when the key is absent.
func (s *PebbleStore) read(key []byte) ([]byte, time.Time, error) {
	value, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: pebble get: %w", ErrStorage, err)
	}
	defer closer.Close()
	if len(value) < timestampHeader {
		return nil, time.Time{}, fmt.Errorf("%w: short value under %s", ErrStorage, key)
	}
	ts := time.Unix(0, int64(binary.BigEndian.Uint64(value)))
	blob, err := s.codec.decode(value[timestampHeader:])
	if err != nil {
		return nil, time.Time{}, err
	}
	return blob, ts, nil
}

func (s *PebbleStore) Get(_ context.Context, id model.Identity) (model.Submission, error) {
	defer observe(BackendPebble, "get", time.Now())
	video, vts, err := s.read(blobKey(id, model.BlobVideo))
	if err != nil {
		return model.Submission{}, err
	}
	input, its, err := s.read(blobKey(id, model.BlobInput))
	if err != nil {
		return model.Submission{}, err
	}
	sub := model.Submission{Identity: id, Video: video, Input: input, UpdatedAt: vts}
	if its.After(vts) {
		sub.UpdatedAt = its
	}
	if !sub.Complete() {
		return model.Submission{}, ErrIncompleteSubmission
	}
	return sub, nil
}

func (s *PebbleStore) Clear(_ context.Context, id model.Identity) error {
	defer observe(BackendPebble, "clear", time.Now())
	return s.deleteIdentities([]model.Identity{id})
}

func (s *PebbleStore) deleteIdentities(ids []model.Identity) error {
	batch := s.db.NewBatch()
	defer batch.Close()
	for _, id := range ids {
		for _, kind := range []model.BlobKind{model.BlobVideo, model.BlobInput} {
			if err := batch.Delete(blobKey(id, kind), nil); err != nil {
				return fmt.Errorf("%w: pebble delete: %w", ErrStorage, err)
			}
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("%w: pebble commit: %w", ErrStorage, err)
	}
	return nil
}

// latest maps every pending identity to its most recent blob timestamp.
func (s *PebbleStore) latest() (map[model.Identity]time.Time, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: submissionPrefix,
		UpperBound: prefixUpperBound(submissionPrefix),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: pebble iter: %w", ErrStorage, err)
	}
	defer iter.Close()

	out := make(map[model.Identity]time.Time)
	for iter.First(); iter.Valid(); iter.Next() {
		id, ok := identityFromKey(iter.Key())
		if !ok {
			continue
		}
		value, err := iter.ValueAndErr()
		if err != nil {
			return nil, fmt.Errorf("%w: pebble value: %w", ErrStorage, err)
		}
		if len(value) < timestampHeader {
			continue
		}
		ts := time.Unix(0, int64(binary.BigEndian.Uint64(value)))
		if cur, seen := out[id]; !seen || ts.After(cur) {
			out[id] = ts
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("%w: pebble iter: %w", ErrStorage, err)
	}
	return out, nil
}

func (s *PebbleStore) Sweep(_ context.Context, before time.Time) (int, error) {
	defer observe(BackendPebble, "sweep", time.Now())
	all, err := s.latest()
	if err != nil {
		return 0, err
	}
	var stale []model.Identity
	for id, ts := range all {
		if ts.Before(before) {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	if err := s.deleteIdentities(stale); err != nil {
		return 0, err
	}
	return len(stale), nil
}

func (s *PebbleStore) Count(context.Context) (int, error) {
	all, err := s.latest()
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

func (s *PebbleStore) Close() error {
	s.codec.close()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: pebble close: %w", ErrStorage, err)
	}
	return nil
}

// prefixUpperBound computes the exclusive upper bound for a prefix scan.
func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte{}, prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}
	return nil
}
