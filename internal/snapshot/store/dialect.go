package store

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lib/pq"
)

// Dialect captures the few places where Postgres and SQLite differ for this schema.
type Dialect struct {
	Name     string
	schema   string
	rebind   func(query string) string
	keysArg  func(keys []string) any
	keysDest func(dest *[]string) any
}

// Postgres binds $N placeholders natively and stores sample keys as TEXT[].
var Postgres = Dialect{
	Name:     "postgres",
	schema:   schemaPostgres,
	rebind:   func(q string) string { return q },
	keysArg:  func(keys []string) any { return pq.Array(keys) },
	keysDest: func(dest *[]string) any { return pq.Array(dest) },
}

var placeholder = regexp.MustCompile(`\$(\d+)`)

// SQLite rewrites $N to ?N and stores sample keys comma-joined.
var SQLite = Dialect{
	Name:     "sqlite",
	schema:   schemaSQLite,
	rebind:   func(q string) string { return placeholder.ReplaceAllString(q, "?$1") },
	keysArg:  func(keys []string) any { return strings.Join(keys, ",") },
	keysDest: func(dest *[]string) any { return &joinedKeys{dest: dest} },
}

// joinedKeys scans a comma-joined TEXT column into a string slice.
type joinedKeys struct {
	dest *[]string
}

func (j *joinedKeys) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*j.dest = nil
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("scan sample keys: unsupported type %T", src)
	}
	if raw == "" {
		*j.dest = []string{}
		return nil
	}
	*j.dest = strings.Split(raw, ",")
	return nil
}
