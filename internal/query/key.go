package query

import "strings"

// Key identifies a cached query, e.g. Key{"holdings", "42"}.
type Key []string

// NewKey builds a key from its parts.
func NewKey(parts ...string) Key {
	return Key(parts)
}

// String is the readable form used in logs and notifications. It is not
// unique: use id for lookups.
func (k Key) String() string {
	return strings.Join(k, "/")
}

// keySep cannot appear in symbols, dates or user ids.
const keySep = "\x00"

// id is the unambiguous form used for cache entries and fetch dedup.
func (k Key) id() string {
	return strings.Join(k, keySep)
}

// Head returns the first part, used as the query name in metrics.
func (k Key) Head() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

// HasPrefix reports whether k starts with every part of prefix.
// An empty prefix matches every key.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, p := range prefix {
		if k[i] != p {
			return false
		}
	}
	return true
}
