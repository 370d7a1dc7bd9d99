package main

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"structnames/internal/loader"
	"structnames/internal/tagcodec"
	"structnames/internal/trace"
	"structnames/internal/types"
)

func newTagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag ID [TYPE...]",
		Short: "Build the struct tag for an identifier and type arguments",
		Long: `Tag interns ID, resolves the handle back into a struct tag carrying the
given TYPE arguments (e.g. u64, vector<u8>, 0x1::coin::Coin) and prints the
encoded tag. Binary formats are printed as hex unless --raw is set.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runTag,
	}
	cmd.Flags().String("format", "text", "output format (text|json|msgpack|cbor)")
	cmd.Flags().Bool("raw", false, "write binary formats without hex encoding")
	return cmd
}

func runTag(cmd *cobra.Command, args []string) error {
	formatStr, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format, err := tagcodec.ParseFormat(formatStr)
	if err != nil {
		return err
	}
	raw, err := cmd.Flags().GetBool("raw")
	if err != nil {
		return fmt.Errorf("failed to get raw flag: %w", err)
	}

	id, err := types.ParseStructIdentifier(args[0])
	if err != nil {
		return err
	}
	var tyArgs []types.TypeTag
	for _, s := range args[1:] {
		tt, err := types.ParseTypeTag(s)
		if err != nil {
			return err
		}
		tyArgs = append(tyArgs, tt)
	}

	l := loader.New(loader.WithTracer(trace.FromContext(cmd.Context())))
	idx, err := l.Table().Intern(id)
	if err != nil {
		return err
	}
	tag, err := l.Table().StructTag(idx, tyArgs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !format.Binary() || raw {
		return tagcodec.Encode(out, tag, format)
	}
	var buf bytes.Buffer
	if err := tagcodec.Encode(&buf, tag, format); err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hex.EncodeToString(buf.Bytes()))
	return err
}
