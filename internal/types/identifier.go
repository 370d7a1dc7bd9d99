package types

import (
	"cmp"
	"fmt"
	"strings"
)

// Identifier is a validated module or struct name.
type Identifier string

// NewIdentifier validates s: a letter followed by letters, digits or '_',
// or '_' followed by at least one such character.
func NewIdentifier(s string) (Identifier, error) {
	if !IsValidIdentifier(s) {
		return "", fmt.Errorf("invalid identifier %q", s)
	}
	return Identifier(s), nil
}

// MustIdentifier panics when s is not a valid identifier.
func MustIdentifier(s string) Identifier {
	id, err := NewIdentifier(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IsValidIdentifier reports whether s may be used as an identifier.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	switch c := s[0]; {
	case isLetter(c):
	case c == '_':
		if len(s) == 1 {
			return false
		}
	default:
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentRest(s[i]) {
			return false
		}
	}
	return true
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentRest(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ModuleID names a module under an address.
type ModuleID struct {
	Address Address
	Name    Identifier
}

// NewModuleID builds a module id from an address and a validated name.
func NewModuleID(addr Address, name Identifier) ModuleID {
	return ModuleID{Address: addr, Name: name}
}

func (m ModuleID) String() string {
	return m.Address.String() + "::" + string(m.Name)
}

// Compare orders by address, then by name.
func (m ModuleID) Compare(o ModuleID) int {
	if c := m.Address.Compare(o.Address); c != 0 {
		return c
	}
	return cmp.Compare(m.Name, o.Name)
}

// StructIdentifier names a struct type independently of its instantiation.
// It is comparable, so == is structural equality.
type StructIdentifier struct {
	Module ModuleID
	Name   Identifier
}

// NewStructIdentifier validates both names and builds an identifier.
func NewStructIdentifier(addr Address, module, name string) (StructIdentifier, error) {
	mod, err := NewIdentifier(module)
	if err != nil {
		return StructIdentifier{}, fmt.Errorf("module name: %w", err)
	}
	st, err := NewIdentifier(name)
	if err != nil {
		return StructIdentifier{}, fmt.Errorf("struct name: %w", err)
	}
	return StructIdentifier{Module: NewModuleID(addr, mod), Name: st}, nil
}

// ParseStructIdentifier parses 0x1::module::Name.
func ParseStructIdentifier(s string) (StructIdentifier, error) {
	parts := strings.Split(s, "::")
	if len(parts) != 3 {
		return StructIdentifier{}, fmt.Errorf("struct identifier %q: expected address::module::Name", s)
	}
	addr, err := ParseAddress(parts[0])
	if err != nil {
		return StructIdentifier{}, err
	}
	id, err := NewStructIdentifier(addr, parts[1], parts[2])
	if err != nil {
		return StructIdentifier{}, fmt.Errorf("struct identifier %q: %w", s, err)
	}
	return id, nil
}

// Compare gives the total order used for sorted listings.
func (s StructIdentifier) Compare(o StructIdentifier) int {
	if c := s.Module.Compare(o.Module); c != 0 {
		return c
	}
	return cmp.Compare(s.Name, o.Name)
}

// Clone returns an independent copy. Identifiers hold only immutable data,
// so a value copy is already deep.
func (s StructIdentifier) Clone() StructIdentifier {
	return s
}

func (s StructIdentifier) String() string {
	return s.Module.String() + "::" + string(s.Name)
}

// Tag assembles a struct tag from the identifier and the given type arguments.
func (s StructIdentifier) Tag(tyArgs []TypeTag) StructTag {
	return StructTag{
		Address:  s.Module.Address,
		Module:   s.Module.Name,
		Name:     s.Name,
		TypeArgs: tyArgs,
	}
}
