package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/list"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sadopc/sqlharbor/internal/adapter"
	"github.com/sadopc/sqlharbor/internal/catalog"
	"github.com/sadopc/sqlharbor/internal/initscript"
	"github.com/sadopc/sqlharbor/internal/ui/results"
)

var outputFormats = []string{"table", "csv", "markdown"}

func newExecCmd(rf *rootFlags) *cobra.Command {
	var command, format string
	cmd := &cobra.Command{
		Use:   "exec [conn_str...]",
		Short: "Run SQL without the interface and print the results",
		Long: `Run one or more semicolon-separated statements and print each result.

SQL comes from --command, or from standard input when --command is not set.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sql := command
			if sql == "" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read standard input: %w", err)
				}
				sql = string(b)
			}
			if format == "" {
				format = "csv"
				if f, ok := cmd.OutOrStdout().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
					format = "table"
				}
			}
			if !validFormat(format) {
				return fmt.Errorf("unknown output format %q (expected one of %s)", format, strings.Join(outputFormats, ", "))
			}
			return withConnection(cmd, args, rf, func(ctx context.Context, conn adapter.Connection) error {
				return execStatements(ctx, cmd.OutOrStdout(), conn, sql, format)
			})
		},
	}
	cmd.Flags().StringVarP(&command, "command", "c", "", "SQL to run")
	cmd.Flags().StringVar(&format, "format", "", "Output format (table, csv, markdown); table on a terminal, csv otherwise")
	return cmd
}

func newCatalogCmd(rf *rootFlags) *cobra.Command {
	var depth int
	cmd := &cobra.Command{
		Use:   "catalog [conn_str...]",
		Short: "Print the database catalog as a tree",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConnection(cmd, args, rf, func(ctx context.Context, conn adapter.Connection) error {
				return printCatalog(ctx, cmd.OutOrStdout(), conn, depth)
			})
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 3, "Levels of the tree to print")
	return cmd
}

func newAdaptersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "adapters",
		Short: "List adapters and their options",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printAdapters(cmd.OutOrStdout())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sqlharbor %s (commit: %s, built: %s)\n", version, commit, date)
			fmt.Fprintf(cmd.OutOrStdout(), "Adapters: %s\n", strings.Join(adapter.Names(), ", "))
		},
	}
}

// withConnection resolves the selection, connects and hands the
// connection to fn.
func withConnection(cmd *cobra.Command, args []string, rf *rootFlags, fn func(context.Context, adapter.Connection) error) error {
	s, err := newSession(cmd, args, rf)
	if err != nil {
		return err
	}
	defer s.Close()

	a, err := adapter.New(s.sel.Adapter, s.sel.ConnStr, adapter.Options(s.sel.Options), s.logger)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	conn, err := a.Connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	if msg := conn.InitMessage(); msg != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), msg)
	}
	return fn(ctx, conn)
}

func execStatements(ctx context.Context, w io.Writer, conn adapter.Connection, sql, format string) error {
	stmts := initscript.Statements(sql)
	if len(stmts) == 0 {
		return fmt.Errorf("no SQL to run")
	}
	for _, stmt := range stmts {
		cur, err := conn.Execute(ctx, stmt)
		if err != nil {
			return err
		}
		if cur == nil {
			fmt.Fprintln(w, "OK")
			continue
		}
		rs, err := cur.FetchAll(ctx)
		if err != nil {
			return err
		}
		if rs == nil {
			return ctx.Err()
		}
		renderResultSet(w, rs, format)
	}
	return nil
}

func renderResultSet(w io.Writer, rs *adapter.ResultSet, format string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(rs.Columns))
	for i, c := range rs.Columns {
		header[i] = c.Name
	}
	t.AppendHeader(header)
	for _, row := range rs.Rows {
		r := make(table.Row, len(row))
		for i, v := range row {
			r[i] = results.FormatValue(v)
		}
		t.AppendRow(r)
	}

	switch format {
	case "csv":
		t.RenderCSV()
	case "markdown":
		t.RenderMarkdown()
	default:
		t.Render()
		if len(rs.Rows) == 1 {
			fmt.Fprintln(w, "(1 row)")
		} else {
			fmt.Fprintf(w, "(%d rows)\n", len(rs.Rows))
		}
	}
}

func validFormat(f string) bool {
	for _, v := range outputFormats {
		if v == f {
			return true
		}
	}
	return false
}

// printCatalog renders the catalog down to depth levels, loading children
// as it goes.
func printCatalog(ctx context.Context, w io.Writer, conn adapter.Connection, depth int) error {
	cat, err := conn.Catalog(ctx)
	if err != nil {
		return err
	}
	if cat == nil || len(cat.Items) == 0 {
		fmt.Fprintln(w, "(empty catalog)")
		return nil
	}

	l := list.NewWriter()
	l.SetOutputMirror(w)
	l.SetStyle(list.StyleConnectedLight)

	var walk func(items []*catalog.Item, level int) error
	walk = func(items []*catalog.Item, level int) error {
		for _, it := range items {
			l.AppendItem(itemLabel(it))
			if level >= depth || it.Leaf() {
				continue
			}
			children, err := catalog.Expand(ctx, it, conn)
			if err != nil {
				return err
			}
			if len(children) == 0 {
				continue
			}
			l.Indent()
			if err := walk(children, level+1); err != nil {
				return err
			}
			l.UnIndent()
		}
		return nil
	}
	if err := walk(cat.Items, 1); err != nil {
		return err
	}
	l.Render()
	return nil
}

func itemLabel(it *catalog.Item) string {
	if it.TypeLabel == "" {
		return it.Label
	}
	return it.Label + " [" + it.TypeLabel + "]"
}

func printAdapters(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ADAPTER", "OPTION", "SHORT", "KIND", "DEFAULT", "DESCRIPTION"})
	for _, name := range adapter.Names() {
		for _, o := range adapter.Declarations(name) {
			def := ""
			if o.Default != nil {
				def = fmt.Sprint(o.Default)
			}
			t.AppendRow(table.Row{name, "--" + adapter.NormalizeName(o.Name), strings.Join(o.Short, " "), kindName(o.Kind), def, o.Description})
		}
		t.AppendSeparator()
	}
	t.Render()
}
