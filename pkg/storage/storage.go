// Package storage runs the aggregate queries the collectors need against the
// site database.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	_ "github.com/dolthub/driver"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite"

	"github.com/Sumatoshi-tech/sampler/pkg/report"
)

// Supported database/sql driver names.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
	DriverDolt     = "dolt"
)

const tracerName = "github.com/Sumatoshi-tech/sampler/pkg/storage"

var (
	// ErrUnsupportedDriver is returned for a driver name outside Drivers.
	ErrUnsupportedDriver = errors.New("unsupported database driver")
	// ErrInvalidIdentifier is returned when a table or column name is not a
	// plain SQL identifier.
	ErrInvalidIdentifier = errors.New("invalid sql identifier")
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Drivers lists the accepted driver names.
func Drivers() []string {
	return []string{DriverMySQL, DriverPostgres, DriverSQLite, DriverDolt}
}

// Filter restricts a query to rows where Column equals Value.
type Filter struct {
	Column string
	Value  any
}

// GroupCount is the row count of one group. Keys holds the group column
// values in the order they were requested.
type GroupCount struct {
	Keys  []string
	Count int
}

// FieldHistogramQuery selects the values of one field on one bundle. The
// field table rows are joined to the entity base table on IDColumn and
// counted per entity.
type FieldHistogramQuery struct {
	FieldTable   string
	BaseTable    string
	IDColumn     string
	BundleColumn string
	Bundle       string
}

// Querier is the read-only query surface used by collectors.
type Querier interface {
	CountWhere(ctx context.Context, table, column string, value any) (int, error)
	GroupedCount(ctx context.Context, table string, groupBy []string, filter *Filter) ([]GroupCount, error)
	FieldHistogram(ctx context.Context, q FieldHistogramQuery) (report.Histogram, error)
}

// Option configures an SQLStore.
type Option func(*SQLStore)

// WithTracer sets the tracer used for query spans.
func WithTracer(tr trace.Tracer) Option {
	return func(s *SQLStore) {
		s.tracer = tr
	}
}

// WithMaxOpenConns bounds the connection pool.
func WithMaxOpenConns(n int) Option {
	return func(s *SQLStore) {
		if n > 0 {
			s.db.SetMaxOpenConns(n)
		}
	}
}

// SQLStore implements Querier on database/sql.
type SQLStore struct {
	db     *sql.DB
	driver string
	tracer trace.Tracer
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	if !slices.Contains(Drivers(), driver) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	store := New(db, driver, opts...)

	pingErr := db.PingContext(ctx)
	if pingErr != nil {
		closeErr := db.Close()

		return nil, fmt.Errorf("ping %s database: %w", driver, errors.Join(pingErr, closeErr))
	}

	return store, nil
}

// New wraps an open database handle.
func New(db *sql.DB, driver string, opts ...Option) *SQLStore {
	store := &SQLStore{
		db:     db,
		driver: driver,
		tracer: otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// DB returns the underlying handle.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// CountWhere counts the rows of table where column equals value.
func (s *SQLStore) CountWhere(ctx context.Context, table, column string, value any) (int, error) {
	err := validateIdentifiers(table, column)
	if err != nil {
		return 0, err
	}

	query := "SELECT COUNT(*) FROM " + s.quote(table) +
		" WHERE " + s.quote(column) + " = " + s.placeholder(1)

	ctx, span := s.startSpan(ctx, "storage.count_where", table)
	defer span.End()

	var count int

	scanErr := s.db.QueryRowContext(ctx, query, value).Scan(&count)
	if scanErr != nil {
		recordError(span, scanErr)

		return 0, fmt.Errorf("count %s.%s: %w", table, column, scanErr)
	}

	return count, nil
}

// GroupedCount counts the rows of table per distinct combination of the
// groupBy columns, optionally restricted by filter. Groups are ordered by
// their key columns.
func (s *SQLStore) GroupedCount(ctx context.Context, table string, groupBy []string, filter *Filter) ([]GroupCount, error) {
	idents := append([]string{table}, groupBy...)
	if filter != nil {
		idents = append(idents, filter.Column)
	}

	err := validateIdentifiers(idents...)
	if err != nil {
		return nil, err
	}

	quoted := make([]string, len(groupBy))
	for idx, col := range groupBy {
		quoted[idx] = s.quote(col)
	}

	cols := strings.Join(quoted, ", ")

	var (
		sb   strings.Builder
		args []any
	)

	sb.WriteString("SELECT ")

	if cols != "" {
		sb.WriteString(cols + ", ")
	}

	sb.WriteString("COUNT(*) FROM " + s.quote(table))

	if filter != nil {
		sb.WriteString(" WHERE " + s.quote(filter.Column) + " = " + s.placeholder(1))

		args = append(args, filter.Value)
	}

	if cols != "" {
		sb.WriteString(" GROUP BY " + cols + " ORDER BY " + cols)
	}

	ctx, span := s.startSpan(ctx, "storage.grouped_count", table)
	defer span.End()

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		recordError(span, err)

		return nil, fmt.Errorf("group %s: %w", table, err)
	}
	defer rows.Close()

	var out []GroupCount

	for rows.Next() {
		keys := make([]sql.NullString, len(groupBy))
		dest := make([]any, 0, len(groupBy)+1)

		for idx := range keys {
			dest = append(dest, &keys[idx])
		}

		var count int

		dest = append(dest, &count)

		scanErr := rows.Scan(dest...)
		if scanErr != nil {
			recordError(span, scanErr)

			return nil, fmt.Errorf("scan %s group: %w", table, scanErr)
		}

		group := GroupCount{Keys: make([]string, len(keys)), Count: count}
		for idx, k := range keys {
			group.Keys[idx] = k.String
		}

		out = append(out, group)
	}

	rowsErr := rows.Err()
	if rowsErr != nil {
		recordError(span, rowsErr)

		return nil, fmt.Errorf("iterate %s groups: %w", table, rowsErr)
	}

	span.SetAttributes(attribute.Int("sampler.groups", len(out)))

	return out, nil
}

// FieldHistogram counts how many entities of a bundle hold each number of
// field values.
func (s *SQLStore) FieldHistogram(ctx context.Context, q FieldHistogramQuery) (report.Histogram, error) {
	err := validateIdentifiers(q.FieldTable, q.BaseTable, q.IDColumn, q.BundleColumn)
	if err != nil {
		return nil, err
	}

	query := "SELECT COUNT(*) FROM " + s.quote(q.FieldTable) + " ft" +
		" INNER JOIN " + s.quote(q.BaseTable) + " bt ON bt." + s.quote(q.IDColumn) + " = ft.entity_id" +
		" WHERE bt." + s.quote(q.BundleColumn) + " = " + s.placeholder(1) +
		" GROUP BY ft.entity_id"

	ctx, span := s.startSpan(ctx, "storage.field_histogram", q.FieldTable)
	defer span.End()

	rows, err := s.db.QueryContext(ctx, query, q.Bundle)
	if err != nil {
		recordError(span, err)

		return nil, fmt.Errorf("field histogram %s: %w", q.FieldTable, err)
	}
	defer rows.Close()

	var counts []int

	for rows.Next() {
		var n int

		scanErr := rows.Scan(&n)
		if scanErr != nil {
			recordError(span, scanErr)

			return nil, fmt.Errorf("scan field histogram %s: %w", q.FieldTable, scanErr)
		}

		counts = append(counts, n)
	}

	rowsErr := rows.Err()
	if rowsErr != nil {
		recordError(span, rowsErr)

		return nil, fmt.Errorf("iterate field histogram %s: %w", q.FieldTable, rowsErr)
	}

	return report.HistogramOf(counts), nil
}

func (s *SQLStore) quote(ident string) string {
	if s.driver == DriverMySQL || s.driver == DriverDolt {
		return "`" + ident + "`"
	}

	return `"` + ident + `"`
}

func (s *SQLStore) placeholder(n int) string {
	if s.driver == DriverPostgres {
		return "$" + strconv.Itoa(n)
	}

	return "?"
}

func (s *SQLStore) startSpan(ctx context.Context, name, table string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", s.driver),
		attribute.String("db.sql.table", table),
	))
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func validateIdentifiers(idents ...string) error {
	for _, ident := range idents {
		if !identifierPattern.MatchString(ident) {
			return fmt.Errorf("%w: %q", ErrInvalidIdentifier, ident)
		}
	}

	return nil
}
