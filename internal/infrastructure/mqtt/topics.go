package mqtt

import "strings"

// DefaultTopicPrefix is the ingest prefix used when none is configured.
const DefaultTopicPrefix = "flowline/ingest"

// Topics builds and parses Flowline topic strings.
//
// The ingest namespace is one level deep: the segment after the prefix
// names the destination table, so a producer publishing rows for table
// "cpu" uses "flowline/ingest/cpu".
//
// The zero value uses DefaultTopicPrefix.
type Topics struct {
	// Prefix overrides the topic prefix (no trailing slash).
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return strings.TrimSuffix(t.Prefix, "/")
}

// Ingest returns the publish topic for one table's rows.
func (t Topics) Ingest(table string) string {
	return t.prefix() + "/" + table
}

// IngestWildcard returns the subscription pattern covering every
// table's ingest topic.
func (t Topics) IngestWildcard() string {
	return t.prefix() + "/+"
}

// TableFromIngest extracts the table name from an ingest topic.
//
// Returns:
//   - string: The table segment
//   - bool: false if the topic is outside the ingest namespace or
//     names no single table segment
func (t Topics) TableFromIngest(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.prefix()+"/")
	if !ok || rest == "" {
		return "", false
	}
	if strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
