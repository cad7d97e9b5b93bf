package store

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// ForeignKey describes one foreign key constraint as reported by the database.
type ForeignKey struct {
	Name            string
	Table           string
	Columns         string
	ReferencedTable string
	ReferencedCols  string
	OnDelete        string
	Definition      string
}

const pgForeignKeys = `
	SELECT
	  con.conname AS name,
	  rel.relname AS "table",
	  string_agg(att.attname, ',' ORDER BY u.ord) AS columns,
	  confrel.relname AS referenced_table,
	  string_agg(att2.attname, ',' ORDER BY u.ord) AS referenced_cols,
	  pg_get_constraintdef(con.oid) AS definition
	FROM pg_constraint con
	JOIN pg_class rel ON rel.oid = con.conrelid
	JOIN pg_class confrel ON confrel.oid = con.confrelid
	JOIN unnest(con.conkey) WITH ORDINALITY AS u(attnum, ord) ON true
	JOIN pg_attribute att ON att.attrelid = con.conrelid AND att.attnum = u.attnum
	LEFT JOIN unnest(con.confkey) WITH ORDINALITY AS v(confkey, ord2) ON v.ord2 = u.ord
	LEFT JOIN pg_attribute att2 ON att2.attrelid = con.confrelid AND att2.attnum = v.confkey
	WHERE con.contype = 'f'
	GROUP BY con.oid, con.conname, rel.relname, confrel.relname
	ORDER BY rel.relname, con.conname`

var onDeleteRe = regexp.MustCompile(`ON DELETE (CASCADE|SET NULL|SET DEFAULT|RESTRICT|NO ACTION)`)

// ForeignKeys lists the foreign keys of the application tables.
func (s *Store) ForeignKeys(ctx context.Context) ([]ForeignKey, error) {
	if s.dialect == "sqlite" {
		return s.sqliteForeignKeys(ctx)
	}
	var out []ForeignKey
	if err := s.conn(ctx).Raw(pgForeignKeys).Scan(&out).Error; err != nil {
		return nil, fmt.Errorf("query constraints: %w", err)
	}
	for i := range out {
		out[i].OnDelete = "NO ACTION"
		if m := onDeleteRe.FindStringSubmatch(out[i].Definition); m != nil {
			out[i].OnDelete = m[1]
		}
	}
	return out, nil
}

func (s *Store) sqliteForeignKeys(ctx context.Context) ([]ForeignKey, error) {
	var out []ForeignKey
	for _, m := range Models() {
		stmt := &gorm.Statement{DB: s.db}
		if err := stmt.Parse(m); err != nil {
			return nil, err
		}
		var rows []struct {
			ID       int
			Table    string
			From     string
			To       string
			OnDelete string `gorm:"column:on_delete"`
		}
		if err := s.conn(ctx).Raw("SELECT id, \"table\", \"from\", \"to\", on_delete FROM pragma_foreign_key_list(?)", stmt.Table).Scan(&rows).Error; err != nil {
			return nil, fmt.Errorf("foreign keys of %s: %w", stmt.Table, err)
		}
		for _, r := range rows {
			out = append(out, ForeignKey{
				Name:            fmt.Sprintf("%s_fk_%d", stmt.Table, r.ID),
				Table:           stmt.Table,
				Columns:         r.From,
				ReferencedTable: r.Table,
				ReferencedCols:  r.To,
				OnDelete:        strings.ToUpper(r.OnDelete),
				Definition:      fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(%s) ON DELETE %s", r.From, r.Table, r.To, strings.ToUpper(r.OnDelete)),
			})
		}
	}
	return out, nil
}

// InspectForeignKeys prints every foreign key to w.
func (s *Store) InspectForeignKeys(ctx context.Context, w io.Writer) error {
	fks, err := s.ForeignKeys(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Foreign keys:")
	for _, fk := range fks {
		fmt.Fprintf(w, "- %s: %s(%s) -> %s(%s)\n    def: %s\n", fk.Name, fk.Table, fk.Columns, fk.ReferencedTable, fk.ReferencedCols, fk.Definition)
	}
	return nil
}

var tableNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// TableNames returns the application tables in dependency order.
func TableNames() []string {
	var names []string
	cache := &sync.Map{}
	for _, m := range Models() {
		if sch, err := schema.Parse(m, cache, schema.NamingStrategy{}); err == nil {
			names = append(names, sch.Table)
		}
	}
	return names
}

// ExistingTables filters wanted down to valid identifiers that exist in the database.
func (s *Store) ExistingTables(ctx context.Context, wanted []string) ([]string, error) {
	var out []string
	for _, t := range wanted {
		if !tableNameRe.MatchString(t) {
			continue
		}
		if s.conn(ctx).Migrator().HasTable(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Truncate empties tables. On postgres identities restart and dependants are
// truncated too; SQLite deletes child tables first.
func (s *Store) Truncate(ctx context.Context, tables []string) error {
	for _, t := range tables {
		if !tableNameRe.MatchString(t) {
			return fmt.Errorf("invalid table name %q", t)
		}
	}
	if len(tables) == 0 {
		return nil
	}
	if s.dialect != "sqlite" {
		quoted := make([]string, len(tables))
		for i, t := range tables {
			quoted[i] = fmt.Sprintf("%q", t)
		}
		stmt := fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(quoted, ", "))
		return s.conn(ctx).Exec(stmt).Error
	}
	for i := len(tables) - 1; i >= 0; i-- {
		if err := s.conn(ctx).Exec(fmt.Sprintf("DELETE FROM %q", tables[i])).Error; err != nil {
			return fmt.Errorf("empty %s: %w", tables[i], err)
		}
	}
	return nil
}
