package xid

import (
	"strings"

	"github.com/google/uuid"
)

// New returns prefix-<uuid v7>. Ids from one process sort by creation time.
func New(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	if prefix == "" {
		return id.String()
	}
	return prefix + "-" + id.String()
}

// Prefix returns the part of id before the uuid, or "" when there is none.
func Prefix(id string) string {
	if len(id) <= 37 || id[len(id)-37] != '-' {
		return ""
	}
	if _, err := uuid.Parse(id[len(id)-36:]); err != nil {
		return ""
	}
	return strings.TrimSuffix(id[:len(id)-36], "-")
}
