package tagcodec

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"structnames/internal/types"
)

func mustTag(t *testing.T, s string) types.StructTag {
	t.Helper()
	tag, err := types.ParseStructTag(s)
	if err != nil {
		t.Fatal(err)
	}
	return tag
}

func TestRoundTrip(t *testing.T) {
	tags := []string{
		"0x1::coin::Coin",
		"0x1::coin::Coin<0x1::aptos::Aptos>",
		"0xcafe::pool::Pool<u64, vector<u8>, 0x1::coin::Coin<bool>>",
	}
	for _, f := range []Format{FormatText, FormatJSON, FormatMsgpack, FormatCBOR} {
		for _, s := range tags {
			t.Run(f.String()+"/"+s, func(t *testing.T) {
				want := mustTag(t, s)
				var buf bytes.Buffer
				if err := Encode(&buf, want, f); err != nil {
					t.Fatal(err)
				}
				got, err := Decode(&buf, f)
				if err != nil {
					t.Fatal(err)
				}
				if diff := cmp.Diff(want, got); diff != "" {
					t.Errorf("round trip mismatch (-want +got):\n%s", diff)
				}
			})
		}
	}
}

func TestCBORIsDeterministic(t *testing.T) {
	tag := mustTag(t, "0x1::coin::Coin<u8>")
	a, err := Marshal(tag, FormatCBOR)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Marshal(tag, FormatCBOR)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("canonical CBOR encoding differs between runs")
	}
}

func TestJSONShape(t *testing.T) {
	data, err := Marshal(mustTag(t, "0x1::coin::Coin<u64>"), FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"address":   "0x1",
		"module":    "coin",
		"name":      "Coin",
		"type_args": []any{"u64"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("json mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmarshalRejectsInvalidNames(t *testing.T) {
	bad := []string{
		`{"address":"0x1","module":"1coin","name":"Coin"}`,
		`{"address":"cafe","module":"coin","name":"Coin"}`,
		`{"address":"0x1","module":"coin","name":"Coin","type_args":["u7"]}`,
		`not json`,
	}
	for _, s := range bad {
		if _, err := Unmarshal([]byte(s), FormatJSON); err == nil {
			t.Errorf("Unmarshal(%s) should fail", s)
		}
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"": FormatText, "text": FormatText, "JSON": FormatJSON, "mp": FormatMsgpack, "cbor": FormatCBOR}
	for in, want := range tests {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestMarshalRejectsInvalidTypeArgs(t *testing.T) {
	coin := mustTag(t, "0x1::coin::Coin")
	nested := mustTag(t, "0x1::coin::Coin")
	nested.TypeArgs = []types.TypeTag{types.MakeVector(types.TypeTag{})}
	bad := []types.StructTag{
		coin.Identifier().Tag([]types.TypeTag{{}}),
		coin.Identifier().Tag([]types.TypeTag{{Kind: types.KindVector}}),
		coin.Identifier().Tag([]types.TypeTag{types.MakeStruct(nested)}),
	}
	for _, tag := range bad {
		for _, f := range []Format{FormatText, FormatJSON, FormatMsgpack, FormatCBOR} {
			if _, err := Marshal(tag, f); err == nil {
				t.Errorf("Marshal(%s, %s) should fail", tag, f)
			}
			var buf bytes.Buffer
			if err := Encode(&buf, tag, f); err == nil {
				t.Errorf("Encode(%s, %s) should fail", tag, f)
			}
			if buf.Len() != 0 {
				t.Errorf("Encode(%s, %s) wrote %d bytes", tag, f, buf.Len())
			}
		}
	}

	// Every tag Marshal accepts decodes back.
	good := mustTag(t, "0x1::coin::Coin<vector<u8>, 0x2::pool::Pool<u64>>")
	data, err := Marshal(good, FormatCBOR)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Unmarshal(data, FormatCBOR); err != nil {
		t.Errorf("Unmarshal: %v", err)
	}
}
