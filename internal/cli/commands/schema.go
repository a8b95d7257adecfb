package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/netbrain/simphple-orm/internal/cli/ui"
	"github.com/netbrain/simphple-orm/internal/orm/schema"
	"github.com/netbrain/simphple-orm/pkg/orm"
)

// NewSchemaCommand creates the schema command. It needs no database.
func NewSchemaCommand() *cobra.Command {
	var tablesOnly bool

	cmd := &cobra.Command{
		Use:   "schema [table...]",
		Short: "Print the DDL of the entity tables",
		Long: `Print the CREATE TABLE statements of the bundled entities in creation order,
or of the named tables only.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := newFactory(nil, zap.NewNop())
			if err != nil {
				return err
			}

			tables, err := selectTables(f, args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if tablesOnly {
				table := ui.NewTable(color.NoColor, "TABLE", "COLUMNS", "REFERENCES", "REFERENCED BY")
				for _, t := range tables {
					table.AddRow(
						t.Name(),
						strconv.Itoa(len(t.Fields())),
						strings.Join(f.References(t.Name()), ","),
						strings.Join(f.Dependents(t.Name()), ","),
					)
				}
				table.Render(out)
				return nil
			}

			for _, t := range tables {
				fmt.Fprintf(out, "%s;\n", t.CreateTableSQL())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&tablesOnly, "tables", false, "list tables instead of printing DDL")

	return cmd
}

// selectTables returns the named tables, or every table in creation order
func selectTables(f *orm.Factory, names []string) ([]*schema.Table, error) {
	if len(names) == 0 {
		return f.Tables()
	}

	tables := make([]*schema.Table, 0, len(names))
	for _, name := range names {
		t, ok := f.Table(name)
		if !ok {
			return nil, fmt.Errorf("unknown table %q", name)
		}
		tables = append(tables, t)
	}
	return tables, nil
}
