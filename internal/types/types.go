package types

import (
	"fmt"
	"strings"
)

// Kind enumerates all supported kinds of type tags.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindU8
	KindU16
	KindU32
	KindU64
	KindU128
	KindU256
	KindAddress
	KindSigner
	KindVector
	KindStruct
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindBool:
		return "bool"
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	case KindU128:
		return "u128"
	case KindU256:
		return "u256"
	case KindAddress:
		return "address"
	case KindSigner:
		return "signer"
	case KindVector:
		return "vector"
	case KindStruct:
		return "struct"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// IsPrimitive reports whether the kind carries no nested type.
func (k Kind) IsPrimitive() bool {
	return k >= KindBool && k <= KindSigner
}

// TypeTag is a fully instantiated type as seen from outside the VM.
type TypeTag struct {
	Kind   Kind
	Elem   *TypeTag   // for vectors
	Struct *StructTag // for structs
}

// Descriptor helpers ---------------------------------------------------------

var (
	Bool    = TypeTag{Kind: KindBool}
	U8      = TypeTag{Kind: KindU8}
	U16     = TypeTag{Kind: KindU16}
	U32     = TypeTag{Kind: KindU32}
	U64     = TypeTag{Kind: KindU64}
	U128    = TypeTag{Kind: KindU128}
	U256    = TypeTag{Kind: KindU256}
	Addr    = TypeTag{Kind: KindAddress}
	Signer  = TypeTag{Kind: KindSigner}
	Invalid = TypeTag{}
)

// MakeVector describes vector<elem>.
func MakeVector(elem TypeTag) TypeTag {
	return TypeTag{Kind: KindVector, Elem: &elem}
}

// MakeStruct wraps a struct tag into a type tag.
func MakeStruct(tag StructTag) TypeTag {
	return TypeTag{Kind: KindStruct, Struct: &tag}
}

// String renders the canonical textual form, e.g. vector<0x1::coin::Coin<u64>>.
func (t TypeTag) String() string {
	var sb strings.Builder
	t.write(&sb)
	return sb.String()
}

// Validate rejects KindInvalid and composite tags missing their payload,
// at any depth.
func (t TypeTag) Validate() error {
	switch {
	case t.Kind.IsPrimitive():
		return nil
	case t.Kind == KindVector:
		if t.Elem == nil {
			return fmt.Errorf("vector without element type")
		}
		return t.Elem.Validate()
	case t.Kind == KindStruct:
		if t.Struct == nil {
			return fmt.Errorf("struct type without tag")
		}
		return t.Struct.Validate()
	default:
		return fmt.Errorf("%s type", t.Kind)
	}
}

func (t TypeTag) write(sb *strings.Builder) {
	switch t.Kind {
	case KindVector:
		sb.WriteString("vector<")
		if t.Elem != nil {
			t.Elem.write(sb)
		} else {
			sb.WriteString(KindInvalid.String())
		}
		sb.WriteByte('>')
	case KindStruct:
		if t.Struct != nil {
			t.Struct.write(sb)
		} else {
			sb.WriteString(KindInvalid.String())
		}
	default:
		sb.WriteString(t.Kind.String())
	}
}

// StructTag pairs a struct identifier with concrete type arguments.
type StructTag struct {
	Address  Address
	Module   Identifier
	Name     Identifier
	TypeArgs []TypeTag
}

// ModuleID returns the module the struct is declared in.
func (st StructTag) ModuleID() ModuleID {
	return ModuleID{Address: st.Address, Name: st.Module}
}

// Identifier drops the type arguments.
func (st StructTag) Identifier() StructIdentifier {
	return StructIdentifier{Module: st.ModuleID(), Name: st.Name}
}

// CanonicalString renders 0x1::coin::Coin<u64, vector<u8>>.
func (st StructTag) CanonicalString() string {
	var sb strings.Builder
	st.write(&sb)
	return sb.String()
}

func (st StructTag) String() string { return st.CanonicalString() }

// Validate reports the first component that would not survive a round trip
// through the canonical string form.
func (st StructTag) Validate() error {
	if !IsValidIdentifier(string(st.Module)) {
		return fmt.Errorf("invalid module name %q", st.Module)
	}
	if !IsValidIdentifier(string(st.Name)) {
		return fmt.Errorf("invalid struct name %q", st.Name)
	}
	for i, arg := range st.TypeArgs {
		if err := arg.Validate(); err != nil {
			return fmt.Errorf("type argument %d: %w", i, err)
		}
	}
	return nil
}

func (st StructTag) write(sb *strings.Builder) {
	sb.WriteString(st.Address.String())
	sb.WriteString("::")
	sb.WriteString(string(st.Module))
	sb.WriteString("::")
	sb.WriteString(string(st.Name))
	if len(st.TypeArgs) == 0 {
		return
	}
	sb.WriteByte('<')
	for i, arg := range st.TypeArgs {
		if i > 0 {
			sb.WriteString(", ")
		}
		arg.write(sb)
	}
	sb.WriteByte('>')
}
