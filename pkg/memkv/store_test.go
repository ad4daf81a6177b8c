package memkv

import (
	"testing"
	"time"
)

func TestSetGetCopies(t *testing.T) {
	s := New(Bytes())
	defer s.Close()

	if created := s.SetNX("k1", []byte("abc"), 0); !created {
		t.Fatalf("expected created=true on first SetNX")
	}
	if created := s.SetNX("k1", []byte("zzz"), 0); created {
		t.Fatalf("SetNX must not overwrite a live key")
	}
	v, ok := s.Get("k1")
	if !ok || string(v) != "abc" {
		t.Fatalf("Get mismatch: ok=%v v=%q", ok, v)
	}
	// modifying the copy must not affect the store
	v[0] = 'X'
	v2, ok := s.Get("k1")
	if !ok || string(v2) != "abc" {
		t.Fatalf("Get after modify copy mismatch: ok=%v v=%q", ok, v2)
	}
}

func TestSharedValuesWithoutClone(t *testing.T) {
	type obj struct{ n int }
	s := New(Options[*obj]{})
	defer s.Close()

	o := &obj{n: 1}
	s.Set("o", o, 0)
	got, ok := s.Get("o")
	if !ok || got != o {
		t.Fatalf("expected the same pointer back")
	}
}

func TestGetDel(t *testing.T) {
	s := New(Bytes())
	defer s.Close()

	s.Set("k2", []byte("42"), 0)
	v, ok := s.GetDel("k2")
	if !ok || string(v) != "42" {
		t.Fatalf("GetDel mismatch: ok=%v v=%q", ok, v)
	}
	if _, ok := s.Get("k2"); ok {
		t.Fatalf("expected key to be deleted after GetDel")
	}
}

func TestExpireTTL(t *testing.T) {
	s := New(Bytes())
	defer s.Close()

	s.Set("k3", []byte("v"), 50*time.Millisecond)
	if _, ok := s.Get("k3"); !ok {
		t.Fatalf("expected key present before TTL")
	}
	time.Sleep(120 * time.Millisecond)
	if _, ok := s.Get("k3"); ok {
		t.Fatalf("expected key expired")
	}
	if _, ok := s.TTL("k3"); ok {
		t.Fatalf("expected TTL to report missing after expiry")
	}
	stats := s.Metrics()
	if stats.Expired == 0 {
		t.Fatalf("expected Expired > 0, got %v", stats.Expired)
	}
}

func TestExpireUpdateTTL(t *testing.T) {
	s := New(Bytes())
	defer s.Close()

	s.Set("k4", []byte("v"), 0)
	if ok := s.Expire("k4", 30*time.Millisecond); !ok {
		t.Fatalf("Expire returned false")
	}
	if d, ok := s.TTL("k4"); !ok || d <= 0 {
		t.Fatalf("TTL should be >0 and ok, got %v %v", d, ok)
	}
	time.Sleep(80 * time.Millisecond)
	if _, ok := s.TTL("k4"); ok {
		t.Fatalf("expected key expired")
	}
}

func TestPersist(t *testing.T) {
	s := New(Bytes())
	defer s.Close()

	s.Set("k5", []byte("v"), 30*time.Millisecond)
	if !s.Persist("k5") {
		t.Fatalf("Persist returned false")
	}
	time.Sleep(60 * time.Millisecond)
	if _, ok := s.Get("k5"); !ok {
		t.Fatalf("persisted key must survive its old TTL")
	}
}

func TestRange(t *testing.T) {
	s := New(Options[int]{Shards: 4})
	defer s.Close()

	for i, k := range []string{"a", "b", "c"} {
		s.Set(k, i, 0)
	}
	seen := map[string]int{}
	s.Range(func(k string, v int) bool {
		seen[k] = v
		return true
	})
	if len(seen) != 3 || seen["c"] != 2 {
		t.Fatalf("range mismatch: %v", seen)
	}
	n := 0
	s.Range(func(string, int) bool { n++; return false })
	if n != 1 {
		t.Fatalf("range should stop early, visited %d", n)
	}
}

func TestMetrics(t *testing.T) {
	s := New(Bytes())
	defer s.Close()

	s.Set("a", []byte("123"), 0)
	s.Set("b", []byte("5"), 0)
	s.Update("a", func(old []byte) []byte { return append(append([]byte{}, old...), []byte("++")...) })
	s.Get("a")
	s.Get("missing")
	s.GetDel("b")

	st := s.Metrics()
	if st.Keys != 1 {
		t.Fatalf("Keys=1 expected, got %d", st.Keys)
	}
	if st.Sets != 2 || st.Updates != 1 {
		t.Fatalf("Sets=2 Updates=1 expected, got %d %d", st.Sets, st.Updates)
	}
	if st.Gets != 3 || st.Hits != 2 || st.Misses != 1 {
		t.Fatalf("Gets/Hits/Misses mismatch: %d/%d/%d", st.Gets, st.Hits, st.Misses)
	}
	if st.Dels != 1 {
		t.Fatalf("Dels=1 expected, got %d", st.Dels)
	}
	if st.Bytes != uint64(len("123"+"++")) {
		t.Fatalf("Bytes=%d expected, got %d", len("123"+"++"), st.Bytes)
	}
}

func TestCloseTwice(t *testing.T) {
	s := New(Bytes())
	s.Close()
	s.Close()
}
