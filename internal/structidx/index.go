package structidx

import (
	"fmt"

	"fortio.org/safecast"

	"structnames/internal/types"
)

// StructNameIndex is a handle standing in for an interned struct identifier.
// It is valid only within the epoch of the table that issued it.
type StructNameIndex uint32

func (i StructNameIndex) String() string {
	return fmt.Sprintf("#%d", uint32(i))
}

// indexFor converts the next backward position into a handle.
func indexFor(n int) (StructNameIndex, error) {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		return 0, err
	}
	return StructNameIndex(v), nil
}

// NameRef is a read-only view of an identifier stored in a Table. Views of
// the same entry share storage; the stored identifier cannot be modified
// through them.
type NameRef struct {
	id *types.StructIdentifier
}

// Value returns the identifier.
func (r NameRef) Value() types.StructIdentifier {
	if r.id == nil {
		return types.StructIdentifier{}
	}
	return *r.id
}

// Same reports whether r and o view the same stored entry.
func (r NameRef) Same(o NameRef) bool {
	return r.id != nil && r.id == o.id
}

// IsZero reports whether r views nothing.
func (r NameRef) IsZero() bool { return r.id == nil }

func (r NameRef) String() string {
	if r.id == nil {
		return "<nil>"
	}
	return r.id.String()
}
