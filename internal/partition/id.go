// Package partition manages the per-tenant data partitions: the identifier
// codec that maps an organization name onto a partition id, and the store that
// creates, copies and drops the partition tables themselves.
package partition

import (
	"errors"
	"regexp"
	"strings"

	"github.com/gosimple/slug"
)

// ID names a tenant partition. Only DeriveID produces one; everything that
// touches a partition table goes through this type so naming rules stay in one
// place.
type ID string

const idPrefix = "org_"

var (
	ErrInvalidName = errors.New("invalid_name")

	idPattern = regexp.MustCompile(`^org_[a-z0-9_]+$`)
)

// DeriveID maps an organization name to its partition id. The mapping is
// deterministic so a retried operation always targets the same partition.
// Names that normalize to nothing are rejected.
func DeriveID(name string) (ID, error) {
	normalized := slug.Make(strings.TrimSpace(name))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	if normalized == "" {
		return "", ErrInvalidName
	}
	return ID(idPrefix + normalized), nil
}

func (id ID) String() string { return string(id) }

// Valid reports whether the id is safe to interpolate as a table name.
func (id ID) Valid() bool {
	return idPattern.MatchString(string(id))
}
