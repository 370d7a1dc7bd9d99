package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"structnames/internal/loader"
	"structnames/internal/structidx"
	"structnames/internal/trace"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Intern the manifest's structs and print the table",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
	cmd.Flags().String("sort", "handle", "row order (handle|name)")
	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	sortBy, err := cmd.Flags().GetString("sort")
	if err != nil {
		return fmt.Errorf("failed to get sort flag: %w", err)
	}
	if sortBy != "handle" && sortBy != "name" {
		return fmt.Errorf("unknown sort order %q (expected handle|name)", sortBy)
	}

	m, err := requireManifest(cmd)
	if err != nil {
		return err
	}
	ids, err := m.Identifiers()
	if err != nil {
		return err
	}
	jobs, err := jobsFor(cmd, m)
	if err != nil {
		return err
	}

	l := loader.New(loader.WithTracer(trace.FromContext(cmd.Context())))
	if _, err := l.Load(cmd.Context(), ids, jobs); err != nil {
		return fmt.Errorf("load failed: %w", err)
	}

	tbl := l.Table()
	entries := tbl.Entries()
	if sortBy == "name" {
		slices.SortFunc(entries, func(a, b structidx.Entry) int {
			return a.Identifier.Compare(b.Identifier)
		})
	}
	fp, err := tbl.Fingerprint()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	renderTable(out, entries)
	numbers.Fprintf(out, "\n%d entries, epoch %d, ", len(entries), tbl.Epoch())
	fmt.Fprintf(out, "fingerprint %016x\n", fp)
	return nil
}

var (
	headerColor = color.New(color.Bold)
	handleColor = color.New(color.FgCyan)
	moduleColor = color.New(color.FgYellow)
)

func renderTable(out io.Writer, entries []structidx.Entry) {
	rows := make([][3]string, len(entries))
	widths := [3]int{
		runewidth.StringWidth("HANDLE"),
		runewidth.StringWidth("MODULE"),
		runewidth.StringWidth("NAME"),
	}
	for i, e := range entries {
		rows[i] = [3]string{e.Index.String(), e.Identifier.Module.String(), string(e.Identifier.Name)}
		for c, cell := range rows[i] {
			widths[c] = max(widths[c], runewidth.StringWidth(cell))
		}
	}

	writeRow(out, widths, [3]string{"HANDLE", "MODULE", "NAME"}, [3]*color.Color{headerColor, headerColor, headerColor})
	for _, r := range rows {
		writeRow(out, widths, r, [3]*color.Color{handleColor, moduleColor, nil})
	}
}

func writeRow(out io.Writer, widths [3]int, cells [3]string, colors [3]*color.Color) {
	var sb strings.Builder
	for c, cell := range cells {
		text := cell
		if colors[c] != nil {
			text = colors[c].Sprint(cell)
		}
		sb.WriteString(text)
		if c < len(cells)-1 {
			// Pad on the visible width; escape codes take no columns.
			sb.WriteString(strings.Repeat(" ", widths[c]-runewidth.StringWidth(cell)+2))
		}
	}
	sb.WriteByte('\n')
	_, _ = io.WriteString(out, sb.String())
}
