package memkv

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"
)

// ========================= Options =========================

type Options[V any] struct {
	Shards       int           // number of shards (default 256)
	ExpireJitter time.Duration // jitter added to TTLs (0 = off)
	MaxBytes     uint64        // hard limit on the total value size (0 = unlimited)

	// SizeOf reports the accounted size of a value. Without it every
	// value counts as zero bytes and MaxBytes never triggers.
	SizeOf func(V) int
	// Clone, when set, is applied on Set and on Get so callers never
	// share storage with the store.
	Clone func(V) V
}

func (o *Options[V]) withDefaults() Options[V] {
	res := *o
	if res.Shards <= 0 {
		res.Shards = 256
	}
	if res.SizeOf == nil {
		res.SizeOf = func(V) int { return 0 }
	}
	return res
}

// Bytes is the Options preset for []byte values: sizes are lengths and
// values are copied in and out.
func Bytes() Options[[]byte] {
	return Options[[]byte]{
		SizeOf: func(b []byte) int { return len(b) },
		Clone: func(b []byte) []byte {
			out := make([]byte, len(b))
			copy(out, b)
			return out
		},
	}
}

// ========================= Store =========================

type Store[V any] struct {
	opts    Options[V]
	shards  []shard[V]
	expq    *expQueue
	closeCh chan struct{}
	wake    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup

	nowFn    func() time.Time
	itemPool sync.Pool // *expItem

	// Metrics
	mKeys    atomic.Uint64
	mBytes   atomic.Uint64
	mSets    atomic.Uint64
	mGets    atomic.Uint64
	mHits    atomic.Uint64
	mMisses  atomic.Uint64
	mDels    atomic.Uint64
	mExpired atomic.Uint64
	mUpdates atomic.Uint64
}

type shard[V any] struct {
	mu sync.RWMutex
	m  map[string]*entry[V]
}

type entry[V any] struct {
	val      V
	size     int
	expireAt int64 // unix nano; 0 = never
}

func New[V any](opts Options[V]) *Store[V] {
	opts = opts.withDefaults()
	s := &Store[V]{
		opts:     opts,
		shards:   make([]shard[V], opts.Shards),
		expq:     &expQueue{},
		closeCh:  make(chan struct{}),
		wake:     make(chan struct{}, 1),
		nowFn:    time.Now,
		itemPool: sync.Pool{New: func() any { return &expItem{} }},
	}
	for i := range s.shards {
		s.shards[i].m = make(map[string]*entry[V], 64)
	}
	s.expq.cond = sync.NewCond(s.expq)
	heap.Init(s.expq)
	s.wg.Add(1)
	go s.expirer()
	return s
}

// Close stops the expiry goroutine. It is safe to call more than once.
func (s *Store[V]) Close() {
	s.once.Do(func() {
		close(s.closeCh)
		s.expq.Lock()
		s.expq.cond.Broadcast()
		s.expq.Unlock()
		s.wg.Wait()
	})
}

// ========================= Hashing and shards =========================

func (s *Store[V]) shardFor(key string) *shard[V] {
	// FNV-1a 64
	var h uint64 = 1469598103934665603
	for i := 0; i < len(key); i++ {
		h ^= uint64(key[i])
		h *= 1099511628211
	}
	return &s.shards[int(h%uint64(len(s.shards)))]
}

func (s *Store[V]) clone(v V) V {
	if s.opts.Clone == nil {
		return v
	}
	return s.opts.Clone(v)
}

// ========================= Byte accounting =========================

// tryAddBytes reserves a positive delta. It fails when MaxBytes would
// be exceeded.
func (s *Store[V]) tryAddBytes(delta uint64) bool {
	if s.opts.MaxBytes == 0 {
		s.mBytes.Add(delta)
		return true
	}
	for {
		cur := s.mBytes.Load()
		next := cur + delta
		if next > s.opts.MaxBytes {
			return false
		}
		if s.mBytes.CompareAndSwap(cur, next) {
			return true
		}
	}
}

// addBytesDelta applies a delta without checking the limit, clamping
// at zero.
func (s *Store[V]) addBytesDelta(delta int64) {
	if delta == 0 {
		return
	}
	for {
		cur := s.mBytes.Load()
		var next uint64
		if delta > 0 {
			next = cur + uint64(delta)
		} else {
			sub := uint64(-delta)
			if sub > cur {
				next = 0
			} else {
				next = cur - sub
			}
		}
		if s.mBytes.CompareAndSwap(cur, next) {
			return
		}
	}
}

// dropExpired removes an expired entry. The shard lock must be held.
func (s *Store[V]) dropExpired(sh *shard[V], key string, e *entry[V]) {
	delete(sh.m, key)
	s.mExpired.Add(1)
	s.mKeys.Add(^uint64(0))
	s.addBytesDelta(int64(-e.size))
}

func (e *entry[V]) expired(now int64) bool {
	return e.expireAt != 0 && e.expireAt <= now
}

// ========================= API =========================

// Set stores val. It returns false when the value does not fit under
// MaxBytes; the previous value, if any, is kept in that case.
func (s *Store[V]) Set(key string, val V, ttl time.Duration) bool {
	_, ok := s.set(key, val, ttl, false)
	return ok
}

// SetNX stores val only when key is absent or expired. created reports
// whether the value was stored.
func (s *Store[V]) SetNX(key string, val V, ttl time.Duration) (created bool) {
	created, _ = s.set(key, val, ttl, true)
	return created
}

func (s *Store[V]) set(key string, val V, ttl time.Duration, onlyNew bool) (created, ok bool) {
	now := s.nowFn()
	expAt := int64(0)
	if ttl > 0 {
		if s.opts.ExpireJitter > 0 {
			ttl += time.Duration(int64(s.opts.ExpireJitter) * (now.UnixNano()%3 - 1))
			if ttl < 0 {
				ttl = 0
			}
		}
		expAt = now.Add(ttl).UnixNano()
	}
	v := s.clone(val)
	size := s.opts.SizeOf(v)

	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	prev, existed := sh.m[key]
	if existed && prev.expired(now.UnixNano()) {
		s.dropExpired(sh, key, prev)
		existed = false
	}
	if existed && onlyNew {
		return false, true
	}
	oldSize := 0
	if existed {
		oldSize = prev.size
	}
	delta := size - oldSize
	if delta > 0 && !s.tryAddBytes(uint64(delta)) {
		return false, false
	}
	sh.m[key] = &entry[V]{val: v, size: size, expireAt: expAt}
	if !existed {
		s.mKeys.Add(1)
	}
	if delta < 0 {
		s.addBytesDelta(int64(delta))
	}
	s.mSets.Add(1)
	if expAt != 0 {
		s.enqueueExpire(key, expAt)
	}
	return !existed, true
}

// Get returns the value stored under key.
func (s *Store[V]) Get(key string) (V, bool) {
	var zero V
	sh := s.shardFor(key)
	sh.mu.RLock()
	e, ok := sh.m[key]
	if !ok {
		sh.mu.RUnlock()
		s.mGets.Add(1)
		s.mMisses.Add(1)
		return zero, false
	}
	exp := e.expireAt
	val := e.val
	sh.mu.RUnlock()

	if exp != 0 && exp <= s.nowFn().UnixNano() {
		// lazy removal, counted as an expiry
		sh.mu.Lock()
		if e2, ok2 := sh.m[key]; ok2 && e2.expired(s.nowFn().UnixNano()) {
			s.dropExpired(sh, key, e2)
		}
		sh.mu.Unlock()
		s.mGets.Add(1)
		s.mMisses.Add(1)
		return zero, false
	}
	s.mGets.Add(1)
	s.mHits.Add(1)
	return s.clone(val), true
}

// GetDel returns and removes key atomically.
func (s *Store[V]) GetDel(key string) (V, bool) {
	var zero V
	sh := s.shardFor(key)
	sh.mu.Lock()
	e, ok := sh.m[key]
	if !ok {
		sh.mu.Unlock()
		s.mGets.Add(1)
		s.mMisses.Add(1)
		return zero, false
	}
	if e.expired(s.nowFn().UnixNano()) {
		s.dropExpired(sh, key, e)
		sh.mu.Unlock()
		s.mGets.Add(1)
		s.mMisses.Add(1)
		return zero, false
	}
	delete(sh.m, key)
	sh.mu.Unlock()
	s.mDels.Add(1)
	s.mGets.Add(1)
	s.mHits.Add(1)
	s.mKeys.Add(^uint64(0))
	s.addBytesDelta(int64(-e.size))
	return e.val, true
}

// Update replaces the value of a live key with fn(old). It returns
// false when the key is missing or the new value does not fit.
func (s *Store[V]) Update(key string, fn func(old V) V) bool {
	sh := s.shardFor(key)
	now := s.nowFn().UnixNano()
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.m[key]
	if !ok {
		return false
	}
	if e.expired(now) {
		s.dropExpired(sh, key, e)
		return false
	}
	newVal := s.clone(fn(e.val))
	size := s.opts.SizeOf(newVal)
	delta := size - e.size
	if delta > 0 && !s.tryAddBytes(uint64(delta)) {
		return false
	}
	e.val = newVal
	e.size = size
	if delta < 0 {
		s.addBytesDelta(int64(delta))
	}
	s.mUpdates.Add(1)
	return true
}

func (s *Store[V]) Exists(key string) bool {
	_, ok := s.Get(key)
	return ok
}

func (s *Store[V]) Delete(key string) bool {
	sh := s.shardFor(key)
	sh.mu.Lock()
	e, ok := sh.m[key]
	if ok {
		delete(sh.m, key)
	}
	sh.mu.Unlock()
	if ok {
		s.mDels.Add(1)
		s.mKeys.Add(^uint64(0))
		s.addBytesDelta(int64(-e.size))
	}
	return ok
}

// Expire sets a TTL on a live key. A non-positive ttl deletes it.
func (s *Store[V]) Expire(key string, ttl time.Duration) bool {
	if ttl <= 0 {
		return s.Delete(key)
	}
	now := s.nowFn()
	exp := now.Add(ttl).UnixNano()

	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.m[key]
	if !ok {
		return false
	}
	if e.expired(now.UnixNano()) {
		s.dropExpired(sh, key, e)
		return false
	}
	e.expireAt = exp
	s.enqueueExpire(key, exp)
	return true
}

// Persist clears the TTL of a live key.
func (s *Store[V]) Persist(key string) bool {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.m[key]
	if !ok || e.expired(s.nowFn().UnixNano()) {
		return false
	}
	e.expireAt = 0
	return true
}

// TTL returns the remaining lifetime. A key without TTL reports 0, true.
func (s *Store[V]) TTL(key string) (time.Duration, bool) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	e, ok := sh.m[key]
	if !ok {
		sh.mu.RUnlock()
		return 0, false
	}
	exp := e.expireAt
	sh.mu.RUnlock()

	if exp == 0 {
		return 0, true
	}
	now := s.nowFn().UnixNano()
	if exp <= now {
		s.Delete(key)
		return 0, false
	}
	return time.Duration(exp - now), true
}

// Range calls fn for every live key until fn returns false. Shards are
// visited one at a time; fn must not call back into the store.
func (s *Store[V]) Range(fn func(key string, val V) bool) {
	now := s.nowFn().UnixNano()
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for k, e := range sh.m {
			if e.expired(now) {
				continue
			}
			if !fn(k, e.val) {
				sh.mu.RUnlock()
				return
			}
		}
		sh.mu.RUnlock()
	}
}

// ========================= Metrics =========================

// Stats is a metrics snapshot. Taking it does not block the store.
type Stats struct {
	Keys    uint64
	Bytes   uint64
	Sets    uint64
	Gets    uint64
	Hits    uint64
	Misses  uint64
	Dels    uint64
	Expired uint64
	Updates uint64
}

func (s *Store[V]) Metrics() Stats {
	return Stats{
		Keys:    s.mKeys.Load(),
		Bytes:   s.mBytes.Load(),
		Sets:    s.mSets.Load(),
		Gets:    s.mGets.Load(),
		Hits:    s.mHits.Load(),
		Misses:  s.mMisses.Load(),
		Dels:    s.mDels.Load(),
		Expired: s.mExpired.Load(),
		Updates: s.mUpdates.Load(),
	}
}

// ========================= Expiry queue =========================

type expItem struct {
	when  int64
	key   string
	index int
}

type expQueue struct {
	sync.Mutex
	cond  *sync.Cond
	items []*expItem
}

func (q *expQueue) Len() int           { return len(q.items) }
func (q *expQueue) Less(i, j int) bool { return q.items[i].when < q.items[j].when }

func (q *expQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

func (q *expQueue) Push(x any) {
	it := x.(*expItem)
	it.index = len(q.items)
	q.items = append(q.items, it)
}

func (q *expQueue) Pop() any {
	old := q.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	q.items = old[:n-1]
	return it
}

func (s *Store[V]) enqueueExpire(key string, when int64) {
	it := s.itemPool.Get().(*expItem)
	it.key = key
	it.when = when
	it.index = -1
	s.expq.Lock()
	heap.Push(s.expq, it)
	s.expq.cond.Broadcast()
	s.expq.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Store[V]) expirer() {
	defer s.wg.Done()
	for {
		s.expq.Lock()
		for s.expq.Len() == 0 {
			if s.isClosed() {
				s.expq.Unlock()
				return
			}
			s.expq.cond.Wait()
		}
		if s.isClosed() {
			s.expq.Unlock()
			return
		}
		it := s.expq.items[0]
		now := s.nowFn().UnixNano()
		if it.when > now {
			// sleep until the nearest deadline, a new earlier deadline,
			// or close
			timer := time.NewTimer(time.Duration(it.when - now))
			s.expq.Unlock()
			select {
			case <-timer.C:
			case <-s.wake:
				timer.Stop()
			case <-s.closeCh:
				timer.Stop()
				return
			}
			continue
		}
		heap.Pop(s.expq)
		s.expq.Unlock()

		// The entry may have been replaced or given a new TTL since.
		sh := s.shardFor(it.key)
		sh.mu.Lock()
		if e := sh.m[it.key]; e != nil && e.expired(s.nowFn().UnixNano()) {
			s.dropExpired(sh, it.key, e)
		}
		sh.mu.Unlock()

		it.key = ""
		it.when = 0
		it.index = -1
		s.itemPool.Put(it)
	}
}

func (s *Store[V]) isClosed() bool {
	select {
	case <-s.closeCh:
		return true
	default:
		return false
	}
}
