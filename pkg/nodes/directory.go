package nodes

import (
	"fmt"
	"maps"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"meshgraph/pkg/graph"
	"meshgraph/pkg/memkv"
)

// DefaultTTL expires node records that have not been touched for this long.
const DefaultTTL = 5 * time.Minute

// Record is what a node knows about another node.
type Record struct {
	ID             graph.NodeID
	Addr           string
	Labels         map[string]string
	LastSeenUnixMs int64

	MsgsIn   uint64
	MsgsOut  uint64
	BytesIn  uint64
	BytesOut uint64
}

func cloneRecord(r Record) Record {
	r.Labels = maps.Clone(r.Labels)
	return r
}

// Directory tracks the compute nodes reachable from the local node.
// Records live in memkv and expire after the configured TTL of
// inactivity; the local node never expires.
type Directory struct {
	self graph.NodeID
	ttl  time.Duration
	kv   *memkv.Store[Record]
}

type Options struct {
	Shards int
	TTL    time.Duration // 0 selects DefaultTTL, negative disables expiry
}

func New(self graph.NodeID, o Options) *Directory {
	ttl := o.TTL
	switch {
	case ttl == 0:
		ttl = DefaultTTL
	case ttl < 0:
		ttl = 0
	}
	d := &Directory{
		self: self,
		ttl:  ttl,
		kv:   memkv.New(memkv.Options[Record]{Shards: o.Shards, Clone: cloneRecord}),
	}
	d.kv.Set(key(self), Record{ID: self, LastSeenUnixMs: time.Now().UnixMilli()}, 0)
	return d
}

func (d *Directory) Close() { d.kv.Close() }

func key(id graph.NodeID) string { return "node:" + string(id) }

// Upsert creates or replaces the record for r.ID, keeping traffic
// counters of an existing record.
func (d *Directory) Upsert(r Record) error {
	id := graph.NodeID(strings.TrimSpace(string(r.ID)))
	if id == "" {
		return fmt.Errorf("nodes: empty node id")
	}
	r.ID = id
	if r.LastSeenUnixMs == 0 {
		r.LastSeenUnixMs = time.Now().UnixMilli()
	}
	if old, ok := d.kv.Get(key(id)); ok {
		r.MsgsIn, r.MsgsOut = old.MsgsIn, old.MsgsOut
		r.BytesIn, r.BytesOut = old.BytesIn, old.BytesOut
	}
	d.kv.Set(key(id), r, d.ttlFor(id))
	zap.L().Debug("node upsert", zap.String("node", string(id)), zap.String("addr", r.Addr))
	return nil
}

func (d *Directory) ttlFor(id graph.NodeID) time.Duration {
	if id == d.self {
		return 0
	}
	return d.ttl
}

func (d *Directory) Get(id graph.NodeID) (Record, bool) { return d.kv.Get(key(id)) }

// Lookup returns the handle of a known node.
func (d *Directory) Lookup(id graph.NodeID) (graph.NodeRef, error) {
	if !d.kv.Exists(key(id)) {
		return graph.NodeRef{}, fmt.Errorf("node %q: %w", id, graph.ErrNodeNotFound)
	}
	return graph.NodeRef{ID: id}, nil
}

// Touch marks a node as seen now, creating the record if missing.
func (d *Directory) Touch(id graph.NodeID) {
	now := time.Now().UnixMilli()
	if !d.kv.Update(key(id), func(r Record) Record { r.LastSeenUnixMs = now; return r }) {
		d.kv.Set(key(id), Record{ID: id, LastSeenUnixMs: now}, d.ttlFor(id))
		zap.L().Info("node discovered", zap.String("node", string(id)))
		return
	}
	if t := d.ttlFor(id); t > 0 {
		d.kv.Expire(key(id), t)
	}
}

// RecordIn accounts a frame received from id and touches the record.
func (d *Directory) RecordIn(id graph.NodeID, n int) {
	d.Touch(id)
	d.kv.Update(key(id), func(r Record) Record {
		r.MsgsIn++
		r.BytesIn += uint64(n)
		return r
	})
}

// RecordOut accounts a frame sent to id.
func (d *Directory) RecordOut(id graph.NodeID, n int) {
	d.kv.Update(key(id), func(r Record) Record {
		r.MsgsOut++
		r.BytesOut += uint64(n)
		return r
	})
}

func (d *Directory) Delete(id graph.NodeID) bool {
	if id == d.self {
		return false
	}
	ok := d.kv.Delete(key(id))
	if ok {
		zap.L().Info("node removed", zap.String("node", string(id)))
	}
	return ok
}

// List returns all live records ordered by id.
func (d *Directory) List() []Record {
	var out []Record
	d.kv.Range(func(_ string, r Record) bool {
		out = append(out, cloneRecord(r))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
