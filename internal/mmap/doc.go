// Package mmap provides anonymous, read-write memory mappings.
//
// Record pools keep their fixed-size slots in mappings obtained here, outside
// the Go garbage collector's control. A mapping is released explicitly with
// Close; its bytes must not be touched afterwards.
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2) with MAP_ANON|MAP_PRIVATE
//   - Windows: VirtualAlloc with MEM_RESERVE|MEM_COMMIT
package mmap
