package flowz

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// ArgsKey builds a single comparable cache key from a list of argument
// values by hashing their type and formatted value. Use it as a Memoize key
// function when the cached computation takes several inputs:
//
//	cached := flowz.NewMemoize("lookup-cache",
//	    func(q Query) uint64 { return flowz.ArgsKey(q.Region, q.Limit, q.Cursor) },
//	    lookup,
//	)
//
// Values that format identically but have different types produce different
// keys. ArgsKey relies on fmt formatting, so it is only as precise as the
// arguments' string representations; distinct values with identical
// formatting (e.g. two struct types printing the same fields) collide.
func ArgsKey(parts ...any) uint64 {
	h := xxhash.New()
	for i, part := range parts {
		if i > 0 {
			_, _ = h.Write([]byte{0x1f}) // separator keeps ("ab","c") distinct from ("a","bc")
		}
		_, _ = fmt.Fprintf(h, "%T=%v", part, part)
	}
	return h.Sum64()
}
