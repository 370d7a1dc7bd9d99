// Package tagcodec encodes struct tags for transport and storage.
package tagcodec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"

	"structnames/internal/types"
)

// Format selects an encoding.
type Format uint8

const (
	FormatText Format = iota
	FormatJSON
	FormatMsgpack
	FormatCBOR
)

func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatJSON:
		return "json"
	case FormatMsgpack:
		return "msgpack"
	case FormatCBOR:
		return "cbor"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}

// Binary reports whether the encoding is not human readable.
func (f Format) Binary() bool {
	return f == FormatMsgpack || f == FormatCBOR
}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "msgpack", "mp":
		return FormatMsgpack, nil
	case "cbor":
		return FormatCBOR, nil
	default:
		return FormatText, fmt.Errorf("unknown tag format %q (want text, json, msgpack or cbor)", s)
	}
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("tagcodec: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// wireTag is the structured form shared by the json, msgpack and cbor
// encodings. Type arguments travel in their canonical text form.
type wireTag struct {
	Address  string   `json:"address" msgpack:"address" cbor:"address"`
	Module   string   `json:"module" msgpack:"module" cbor:"module"`
	Name     string   `json:"name" msgpack:"name" cbor:"name"`
	TypeArgs []string `json:"type_args,omitempty" msgpack:"type_args,omitempty" cbor:"type_args,omitempty"`
}

func toWire(tag types.StructTag) wireTag {
	w := wireTag{
		Address: tag.Address.String(),
		Module:  string(tag.Module),
		Name:    string(tag.Name),
	}
	if len(tag.TypeArgs) > 0 {
		w.TypeArgs = make([]string, len(tag.TypeArgs))
		for i, a := range tag.TypeArgs {
			w.TypeArgs[i] = a.String()
		}
	}
	return w
}

func (w wireTag) tag() (types.StructTag, error) {
	addr, err := types.ParseAddress(w.Address)
	if err != nil {
		return types.StructTag{}, err
	}
	id, err := types.NewStructIdentifier(addr, w.Module, w.Name)
	if err != nil {
		return types.StructTag{}, err
	}
	var args []types.TypeTag
	if len(w.TypeArgs) > 0 {
		args = make([]types.TypeTag, len(w.TypeArgs))
		for i, s := range w.TypeArgs {
			if args[i], err = types.ParseTypeTag(s); err != nil {
				return types.StructTag{}, fmt.Errorf("type argument %d: %w", i, err)
			}
		}
	}
	return id.Tag(args), nil
}

// Marshal encodes tag in format f. Tags that Unmarshal would reject, such as
// one carrying an invalid type argument, are refused.
func Marshal(tag types.StructTag, f Format) ([]byte, error) {
	if err := tag.Validate(); err != nil {
		return nil, fmt.Errorf("tagcodec: %w", err)
	}
	switch f {
	case FormatText:
		return []byte(tag.CanonicalString()), nil
	case FormatJSON:
		return json.Marshal(toWire(tag))
	case FormatMsgpack:
		return msgpack.Marshal(toWire(tag))
	case FormatCBOR:
		return cborEncMode.Marshal(toWire(tag))
	default:
		return nil, fmt.Errorf("tagcodec: unsupported format %s", f)
	}
}

// Unmarshal decodes a tag produced by Marshal and validates every name.
func Unmarshal(data []byte, f Format) (types.StructTag, error) {
	var w wireTag
	var err error
	switch f {
	case FormatText:
		return types.ParseStructTag(string(bytes.TrimSpace(data)))
	case FormatJSON:
		err = json.Unmarshal(data, &w)
	case FormatMsgpack:
		err = msgpack.Unmarshal(data, &w)
	case FormatCBOR:
		err = cbor.Unmarshal(data, &w)
	default:
		return types.StructTag{}, fmt.Errorf("tagcodec: unsupported format %s", f)
	}
	if err != nil {
		return types.StructTag{}, fmt.Errorf("tagcodec: decode %s: %w", f, err)
	}
	return w.tag()
}

// Encode writes tag to w. Text and JSON output end with a newline.
func Encode(w io.Writer, tag types.StructTag, f Format) error {
	data, err := Marshal(tag, f)
	if err != nil {
		return err
	}
	if !f.Binary() {
		data = append(data, '\n')
	}
	_, err = w.Write(data)
	return err
}

// Decode reads a single tag from r.
func Decode(r io.Reader, f Format) (types.StructTag, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return types.StructTag{}, err
	}
	return Unmarshal(data, f)
}
