package memkv_test

import (
	"fmt"
	"time"

	"meshgraph/pkg/memkv"
)

func Example_basic() {
	s := memkv.New(memkv.Bytes())
	defer s.Close()

	s.Set("user:1", []byte("alice"), 500*time.Millisecond)

	v, _ := s.Get("user:1")
	fmt.Println(string(v))

	// get and delete atomically
	v2, _ := s.GetDel("user:1")
	fmt.Println(string(v2))

	st := s.Metrics()
	fmt.Println(st.Keys == 0 && st.Dels == 1)

	// Output:
	// alice
	// alice
	// true
}
