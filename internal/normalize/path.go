package normalize

import (
	"strconv"
	"strings"
)

// ResolvePath walks data along path and returns the value found, or nil when
// any step is missing. Paths are dotted keys with optional bracket segments:
//
//	fields.status.name
//	fields["System.Title"]
//	labels[0].name
//
// An empty path or "null" resolves to nil.
func ResolvePath(data any, path string) any {
	if path == "" || strings.EqualFold(path, "null") {
		return nil
	}
	segs, ok := splitPath(path)
	if !ok {
		return nil
	}
	cur := data
	for _, seg := range segs {
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[seg]
			if !ok {
				return nil
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(v) {
				return nil
			}
			cur = v[i]
		default:
			return nil
		}
	}
	return cur
}

// splitPath tokenizes a path into keys. Quoted bracket keys may contain dots.
func splitPath(path string) ([]string, bool) {
	var segs []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			segs = append(segs, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(path); i++ {
		c := path[i]
		switch c {
		case '.':
			flush()
		case '[':
			flush()
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				return nil, false
			}
			key := strings.TrimSpace(path[i+1 : i+end])
			key = strings.Trim(key, `"'`)
			segs = append(segs, key)
			i += end
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return segs, len(segs) > 0
}
