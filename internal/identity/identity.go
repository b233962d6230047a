// Package identity resolves the subject id that keys every alert. A blank
// id is a valid answer: callers skip dispatch when no subject is known.
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/db"
)

// Provider supplies the current subject id.
type Provider interface {
	SubjectID(ctx context.Context) (string, error)
}

// Static is a fixed subject id, usually taken from a flag.
type Static string

func (s Static) SubjectID(context.Context) (string, error) {
	return strings.TrimSpace(string(s)), nil
}

// HashUID returns the lowercase hex SHA-256 digest of an account uid. Only
// the digest is stored.
func HashUID(uid string) string {
	sum := sha256.Sum256([]byte(uid))
	return hex.EncodeToString(sum[:])
}

// SubjectLookup finds a subject by hashed uid.
type SubjectLookup interface {
	SubjectByUIDHash(ctx context.Context, uidHash string) (*db.Subject, error)
}

// Registry resolves the subject registered to an account uid. An unknown
// or empty uid resolves to a blank id, not an error.
type Registry struct {
	Lookup SubjectLookup
	UID    string
}

func (r Registry) SubjectID(ctx context.Context) (string, error) {
	uid := strings.TrimSpace(r.UID)
	if uid == "" || r.Lookup == nil {
		return "", nil
	}
	s, err := r.Lookup.SubjectByUIDHash(ctx, HashUID(uid))
	if errors.Is(err, db.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve subject: %w", err)
	}
	return s.ID, nil
}

// Resolve returns the subject id from p, or "" if p is nil or fails.
func Resolve(ctx context.Context, p Provider) string {
	if p == nil {
		return ""
	}
	id, err := p.SubjectID(ctx)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(id)
}
