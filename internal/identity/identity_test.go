package identity

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/db"
)

func TestHashUID(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", HashUID("abc"))
	assert.Len(t, HashUID(""), 64)
	assert.NotEqual(t, HashUID("a"), HashUID("b"))
}

func TestStatic(t *testing.T) {
	id, err := Static("  kid-1 ").SubjectID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "kid-1", id)

	id, err = Static("").SubjectID(context.Background())
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestRegistry(t *testing.T) {
	d, err := db.NewDB(filepath.Join(t.TempDir(), "guardian.db"))
	require.NoError(t, err)
	defer d.Close()

	ctx := context.Background()
	require.NoError(t, d.UpsertSubject(ctx, db.Subject{ID: "kid-1", UIDHash: HashUID("firebase-uid-1")}))

	tests := []struct {
		name string
		uid  string
		want string
	}{
		{"registered", "firebase-uid-1", "kid-1"},
		{"unregistered", "someone-else", ""},
		{"blank", "  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := Registry{Lookup: d, UID: tt.uid}.SubjectID(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

type failingLookup struct{}

func (failingLookup) SubjectByUIDHash(context.Context, string) (*db.Subject, error) {
	return nil, errors.New("database is locked")
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", Resolve(ctx, nil))
	assert.Equal(t, "kid-2", Resolve(ctx, Static("kid-2")))

	_, err := Registry{Lookup: failingLookup{}, UID: "u"}.SubjectID(ctx)
	assert.Error(t, err)
	assert.Equal(t, "", Resolve(ctx, Registry{Lookup: failingLookup{}, UID: "u"}))
}

func ExampleHashUID() {
	fmt.Println(HashUID("abc")[:16])
	// Output: ba7816bf8f01cfea
}
