package datarecording

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"sort"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Filter narrows down the rows returned by Query and Count.
type Filter struct {
	// Where is a condition without the WHERE keyword, for example
	// "Manager = ? AND Overrun = ?".
	Where string
	Args  []any

	// OrderBy lists the sort columns without the ORDER BY keywords.
	OrderBy string

	// Limit caps the number of rows. Zero means all rows.
	Limit  int
	Offset int
}

func (f Filter) where() string {
	if f.Where == "" {
		return ""
	}

	return " WHERE " + f.Where
}

func (f Filter) page() string {
	s := ""
	if f.OrderBy != "" {
		s += " ORDER BY " + f.OrderBy
	}

	if f.Limit > 0 {
		s += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
	}

	return s
}

// Reader reads back a database written by a DataRecorder.
type Reader struct {
	db *sql.DB
}

// OpenReader opens an existing recording, read only.
func OpenReader(filename string) (*Reader, error) {
	if _, err := os.Stat(filename); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", "file:"+filename+"?mode=ro")
	if err != nil {
		return nil, err
	}

	return NewReaderWithDB(db), nil
}

// NewReaderWithDB reads from an open database.
func NewReaderWithDB(db *sql.DB) *Reader {
	return &Reader{db: db}
}

// Tables lists the tables of the recording, sorted.
func (r *Reader) Tables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}

		tables = append(tables, name)
	}

	sort.Strings(tables)

	return tables, rows.Err()
}

// Close closes the database.
func (r *Reader) Close() error {
	return r.db.Close()
}

// Count returns the number of rows of a table that pass the filter. Limit and
// Offset are ignored.
func Count(ctx context.Context, r *Reader, table string, f Filter) (int, error) {
	if !tableNamePattern.MatchString(table) {
		return 0, fmt.Errorf("invalid table name %q", table)
	}

	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+table+f.where(), f.Args...).Scan(&n)

	return n, err
}

// Query reads rows of a table into values of T. Columns are matched to the
// fields of T by name, the way CreateTable names them; other columns are
// skipped.
func Query[T any](
	ctx context.Context,
	r *Reader,
	table string,
	f Filter,
) ([]T, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Struct {
		return nil, errors.New("rows can only be read into structs")
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT * FROM "+table+f.where()+f.page(), f.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []T
	for rows.Next() {
		var entry T
		if err := rows.Scan(scanTargets(&entry, columns)...); err != nil {
			return nil, err
		}

		out = append(out, entry)
	}

	return out, rows.Err()
}

func scanTargets(entry any, columns []string) []any {
	v := reflect.ValueOf(entry).Elem()
	targets := make([]any, len(columns))

	for i, col := range columns {
		field := v.FieldByName(col)
		if field.IsValid() && field.CanSet() {
			targets[i] = field.Addr().Interface()
			continue
		}

		var discard any
		targets[i] = &discard
	}

	return targets
}
