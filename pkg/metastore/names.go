package metastore

import (
	"fmt"
	"net/url"
	"strings"
)

// PartName formats a single-key partition name as "key=value".
func PartName(key, value string) string {
	return fmt.Sprintf("%s=%s", key, value)
}

// PartPath builds the catalog-style partition path segment for a single
// key/value pair, escaping characters that are unsafe in storage paths.
func PartPath(key, value string) string {
	return escapePathComponent(key) + "=" + escapePathComponent(value)
}

// PartitionLocation joins a table's base storage location with the partition
// path for the given key/value pair.
func PartitionLocation(baseLocation, key, value string) string {
	return strings.TrimRight(baseLocation, "/") + "/" + PartPath(key, value)
}

// escapePathComponent percent-escapes characters that would break a
// filesystem or object-store path.
func escapePathComponent(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`/\:*?"<>|%`, r) || r < 0x20 {
			b.WriteString(url.QueryEscape(string(r)))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
