// Package cache implements spec.md §4.5's RequestCache: a TTL-bounded memo
// with single-flight coalescing and bounded eviction.
//
// Key canonicalization is grounded on olla's translator/extract.go use of
// gjson for cheap, allocation-light JSON field extraction, paired with
// json-iterator for the arbitrary-Go-value marshal path — together they
// let an equivalent request reach the same cache key regardless of map key
// order or Go value representation.
package cache

import (
	"encoding/json"
	"hash/fnv"
	"sort"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// CanonicalKey derives a deterministic cache key from (method, params):
// params is normalized to a canonical JSON form (object keys sorted,
// array order preserved) before hashing, so `{"a":1,"b":2}` and
// `{"b":2,"a":1}` collide on the same key.
func CanonicalKey(method string, params any) string {
	raw := toJSON(params)
	canonical := canonicalize(gjson.ParseBytes(raw))

	h := fnv.New64a()
	_, _ = h.Write([]byte(method))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(canonical)

	return method + ":" + strconv.FormatUint(h.Sum64(), 16)
}

func toJSON(params any) []byte {
	switch p := params.(type) {
	case nil:
		return []byte("null")
	case json.RawMessage:
		return p
	case []byte:
		return p
	case string:
		return []byte(p)
	default:
		b, err := jsonAPI.Marshal(p)
		if err != nil {
			return []byte("null")
		}
		return b
	}
}

// canonicalize rebuilds v as compact JSON with object keys sorted.
func canonicalize(v gjson.Result) []byte {
	switch {
	case v.IsObject():
		keys := make([]string, 0)
		fields := map[string]gjson.Result{}
		v.ForEach(func(key, value gjson.Result) bool {
			k := key.String()
			keys = append(keys, k)
			fields[k] = value
			return true
		})
		sort.Strings(keys)

		out := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				out = append(out, ',')
			}
			kb, _ := jsonAPI.Marshal(k)
			out = append(out, kb...)
			out = append(out, ':')
			out = append(out, canonicalize(fields[k])...)
		}
		return append(out, '}')

	case v.IsArray():
		out := []byte{'['}
		items := v.Array()
		for i, item := range items {
			if i > 0 {
				out = append(out, ',')
			}
			out = append(out, canonicalize(item)...)
		}
		return append(out, ']')

	default:
		return []byte(v.Raw)
	}
}
