// Copyright 2025 Emiliano Spinella (eminwux)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eminwux/wemu/internal/errdefs"
	"github.com/eminwux/wemu/pkg/api"
	bolt "go.etcd.io/bbolt"
)

//nolint:gochecknoglobals // bucket names
var (
	bucketApplications = []byte("applications")
	bucketSessions     = []byte("sessions")
	bucketComponents   = []byte("components")
)

// BoltStore keeps one bucket per entity with JSON values.
type BoltStore struct {
	db *bolt.DB
}

func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errdefs.ErrOpenStore, path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketApplications, bucketSessions, bucketComponents} {
			if _, errB := tx.CreateBucketIfNotExists(b); errB != nil {
				return errB
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: create buckets: %w", errdefs.ErrOpenStore, err)
	}
	return &BoltStore{db: db}, nil
}

func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func put(b *bolt.Bucket, key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, raw)
}

// wrap leaves sentinel and callback errors alone and marks the rest as
// storage faults.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	var me *mutateErr
	if errors.As(err, &me) {
		return me.err
	}
	if errors.Is(err, errdefs.ErrNotFound) || errors.Is(err, errdefs.ErrInvalid) {
		return err
	}
	return storeErr(err)
}

func (s *BoltStore) CreateApplication(_ context.Context, in api.ApplicationInput) (*api.Application, error) {
	var a *api.Application
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketApplications)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		a = newApplication(int64(seq), in)
		return put(b, itob(a.ID), a)
	})
	if err != nil {
		return nil, wrap(err)
	}
	return a, nil
}

func (s *BoltStore) GetApplication(_ context.Context, id int64) (*api.Application, error) {
	var a api.Application
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketApplications).Get(itob(id))
		if raw == nil {
			return errdefs.ErrApplicationNotFound
		}
		return json.Unmarshal(raw, &a)
	})
	if err != nil {
		return nil, wrap(err)
	}
	return &a, nil
}

func (s *BoltStore) ListApplications(_ context.Context, skip, limit int, activeOnly bool) ([]*api.Application, error) {
	out := []*api.Application{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketApplications).ForEach(func(_, raw []byte) error {
			var a api.Application
			if err := json.Unmarshal(raw, &a); err != nil {
				return err
			}
			if activeOnly && !a.Active {
				return nil
			}
			out = append(out, &a)
			return nil
		})
	})
	if err != nil {
		return nil, wrap(err)
	}
	return page(out, skip, limit), nil
}

func (s *BoltStore) modifyApplication(id int64, fn func(*api.Application)) (*api.Application, error) {
	var a api.Application
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketApplications)
		raw := b.Get(itob(id))
		if raw == nil {
			return errdefs.ErrApplicationNotFound
		}
		if err := json.Unmarshal(raw, &a); err != nil {
			return err
		}
		fn(&a)
		return put(b, itob(id), &a)
	})
	if err != nil {
		return nil, wrap(err)
	}
	return &a, nil
}

func (s *BoltStore) UpdateApplication(_ context.Context, id int64, in api.ApplicationInput) (*api.Application, error) {
	return s.modifyApplication(id, func(a *api.Application) { applyApplication(a, in) })
}

func (s *BoltStore) DeactivateApplication(_ context.Context, id int64) error {
	_, err := s.modifyApplication(id, func(a *api.Application) {
		a.Active = false
		a.UpdatedAt = now()
	})
	return err
}

func (s *BoltStore) CreateSession(_ context.Context, sess *api.Session) error {
	if sess == nil || sess.ID == "" {
		return errdefs.ErrInvalid
	}
	return wrap(s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		if b.Get([]byte(sess.ID)) != nil {
			return fmt.Errorf("session %s already exists", sess.ID)
		}
		return put(b, []byte(sess.ID), sess)
	}))
}

func (s *BoltStore) GetSession(_ context.Context, id string) (*api.Session, error) {
	var sess api.Session
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketSessions).Get([]byte(id))
		if raw == nil {
			return errdefs.ErrSessionNotFound
		}
		return json.Unmarshal(raw, &sess)
	})
	if err != nil {
		return nil, wrap(err)
	}
	return &sess, nil
}

func (s *BoltStore) ListSessions(_ context.Context, status api.SessionStatus) ([]*api.Session, error) {
	out := []*api.Session{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).ForEach(func(_, raw []byte) error {
			var sess api.Session
			if err := json.Unmarshal(raw, &sess); err != nil {
				return err
			}
			if status == "" || sess.Status == status {
				out = append(out, &sess)
			}
			return nil
		})
	})
	if err != nil {
		return nil, wrap(err)
	}
	sortSessions(out)
	return out, nil
}

func (s *BoltStore) UpdateSession(_ context.Context, id string, fn func(*api.Session) error) (*api.Session, error) {
	var sess api.Session
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		raw := b.Get([]byte(id))
		if raw == nil {
			return errdefs.ErrSessionNotFound
		}
		if err := json.Unmarshal(raw, &sess); err != nil {
			return err
		}
		if err := fn(&sess); err != nil {
			return &mutateErr{err: err}
		}
		sess.ID = id
		return put(b, []byte(id), &sess)
	})
	if err != nil {
		return nil, wrap(err)
	}
	return &sess, nil
}

func (s *BoltStore) CreateComponent(_ context.Context, c *api.Component) error {
	if c == nil || c.ID == "" {
		return errdefs.ErrInvalid
	}
	return wrap(s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketComponents)
		if b.Get([]byte(c.ID)) != nil {
			return fmt.Errorf("component %s already exists", c.ID)
		}
		return put(b, []byte(c.ID), c)
	}))
}

func (s *BoltStore) GetComponent(_ context.Context, id string) (*api.Component, error) {
	var c api.Component
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketComponents).Get([]byte(id))
		if raw == nil {
			return errdefs.ErrComponentNotFound
		}
		return json.Unmarshal(raw, &c)
	})
	if err != nil {
		return nil, wrap(err)
	}
	return &c, nil
}

func (s *BoltStore) ListComponents(_ context.Context, typ api.ComponentType) ([]*api.Component, error) {
	out := []*api.Component{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketComponents).ForEach(func(_, raw []byte) error {
			var c api.Component
			if err := json.Unmarshal(raw, &c); err != nil {
				return err
			}
			if typ == "" || c.Type == typ {
				out = append(out, &c)
			}
			return nil
		})
	})
	if err != nil {
		return nil, wrap(err)
	}
	sortComponents(out)
	return out, nil
}

func (s *BoltStore) UpdateComponent(ctx context.Context, id string, in api.ComponentInput) (*api.Component, error) {
	var c api.Component
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketComponents)
		raw := b.Get([]byte(id))
		if raw == nil {
			return errdefs.ErrComponentNotFound
		}
		if err := json.Unmarshal(raw, &c); err != nil {
			return err
		}
		applyComponent(&c, in)
		return put(b, []byte(id), &c)
	})
	if err != nil {
		return nil, wrap(err)
	}
	return s.GetComponent(ctx, id)
}

func (s *BoltStore) DeleteComponent(_ context.Context, id string) error {
	return wrap(s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketComponents)
		if b.Get([]byte(id)) == nil {
			return errdefs.ErrComponentNotFound
		}
		return b.Delete([]byte(id))
	}))
}

func (s *BoltStore) Ping(context.Context) error {
	return wrap(s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketSessions) == nil {
			return errors.New("sessions bucket missing")
		}
		return nil
	}))
}

func (s *BoltStore) Close() error { return s.db.Close() }
