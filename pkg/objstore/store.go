// Package objstore holds the objects a node owns, keyed by the ids it
// assigns. It is the store the decoder registers adopted objects into
// and the one remote references are resolved against.
package objstore

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"meshgraph/pkg/graph"
	"meshgraph/pkg/memkv"
)

// ErrFull is returned by Put when MaxBytes would be exceeded.
var ErrFull = errors.New("objstore: byte limit reached")

type Options struct {
	Shards   int
	MaxBytes uint64
	// TTL expires objects that are not touched for this long (0 = never).
	TTL time.Duration
}

// Store is safe for concurrent use.
type Store struct {
	owner graph.NodeID
	ttl   time.Duration
	kv    *memkv.Store[graph.Identified]
	next  atomic.Int64
}

func New(owner graph.NodeID, o Options) *Store {
	kv := memkv.New(memkv.Options[graph.Identified]{
		Shards:   o.Shards,
		MaxBytes: o.MaxBytes,
		SizeOf:   sizeOf,
	})
	return &Store{owner: owner, ttl: o.TTL, kv: kv}
}

func (s *Store) Close() { s.kv.Close() }

// Owner is the node the stored objects belong to.
func (s *Store) Owner() graph.NodeID { return s.owner }

func key(id graph.ObjectID) string { return "obj:" + id.String() }

// Put assigns the next local id to v and stores it.
func (s *Store) Put(v graph.Identified) (graph.ObjectID, error) {
	id := graph.ObjectID(s.next.Add(1))
	prev := v.ObjectID()
	v.SetObjectID(id)
	if !s.kv.Set(key(id), v, s.ttl) {
		v.SetObjectID(prev)
		zap.L().Warn("objstore put rejected", zap.String("node", string(s.owner)), zap.String("type", v.TypeName()), zap.Int64("id", int64(id)))
		return 0, fmt.Errorf("store %s on %q: %w", v.TypeName(), s.owner, ErrFull)
	}
	zap.L().Debug("objstore put", zap.String("node", string(s.owner)), zap.String("type", v.TypeName()), zap.Int64("id", int64(id)))
	return id, nil
}

// RegisterObject lets the store act as the decoder's registrar.
func (s *Store) RegisterObject(v graph.Identified) error {
	_, err := s.Put(v)
	return err
}

// Get returns the object stored under id and refreshes its TTL.
func (s *Store) Get(id graph.ObjectID) (graph.Identified, error) {
	v, ok := s.kv.Get(key(id))
	if !ok {
		return nil, fmt.Errorf("object %s on %q: %w", id, s.owner, graph.ErrObjectNotFound)
	}
	if s.ttl > 0 {
		s.kv.Expire(key(id), s.ttl)
	}
	return v, nil
}

// Lookup resolves id on node, which must be the owner.
func (s *Store) Lookup(node graph.NodeID, id graph.ObjectID) (graph.Value, error) {
	if node != s.owner {
		return nil, fmt.Errorf("object %s on %q is not held by %q: %w", id, node, s.owner, graph.ErrObjectNotFound)
	}
	return s.Get(id)
}

func (s *Store) Delete(id graph.ObjectID) bool {
	ok := s.kv.Delete(key(id))
	if ok {
		zap.L().Debug("objstore delete", zap.String("node", string(s.owner)), zap.Int64("id", int64(id)))
	}
	return ok
}

// IDs lists the live object ids in ascending order.
func (s *Store) IDs() []graph.ObjectID {
	var out []graph.ObjectID
	s.kv.Range(func(k string, _ graph.Identified) bool {
		if n, err := strconv.ParseInt(k[len("obj:"):], 10, 64); err == nil {
			out = append(out, graph.ObjectID(n))
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Store) Len() int { return int(s.kv.Metrics().Keys) }

func (s *Store) Stats() memkv.Stats { return s.kv.Metrics() }

// sizeOf counts the numeric payload only.
func sizeOf(v graph.Identified) int {
	switch t := v.(type) {
	case *graph.Array:
		return 8 * len(t.Data)
	case *graph.Tensor:
		return 8 * len(t.Data)
	}
	return 0
}
