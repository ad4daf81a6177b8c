// Package memkv is a thread-safe in-memory key/value store used as the
// backing layer of the object store and the node directory.
//
// Properties:
//   - sharded map guarded by RW mutexes (256 shards by default)
//   - per-key TTL with a background goroutine removing expired keys
//   - optional copy-on-set / copy-on-get through Options.Clone
//   - lock-free metrics on atomics
//   - optional hard limit on the total size of stored values
//     (Options.MaxBytes, measured with Options.SizeOf)
package memkv

// Running tests and benchmarks:
//
//	go test -v ./pkg/memkv
//	go test -bench=BenchmarkSetGet_Parallel -benchmem ./pkg/memkv
