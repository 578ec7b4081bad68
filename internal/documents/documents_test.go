package documents

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDriver keeps inserted rows in memory and answers the two queries the
// repository issues.
type fakeDriver struct{}

type fakeConn struct{}

type fakeRows struct {
	data [][]driver.Value
	i    int
}

var fakeState struct {
	sync.Mutex
	rows    map[string][]driver.Value
	execErr error
}

func init() {
	sql.Register("fakedocs", fakeDriver{})
}

func (fakeDriver) Open(name string) (driver.Conn, error) { return fakeConn{}, nil }

func (fakeConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("not implemented")
}
func (fakeConn) Close() error              { return nil }
func (fakeConn) Begin() (driver.Tx, error) { return nil, errors.New("not implemented") }

func (fakeConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	fakeState.Lock()
	defer fakeState.Unlock()
	if fakeState.execErr != nil {
		return nil, fakeState.execErr
	}
	if strings.Contains(query, "INSERT INTO documents") {
		row := make([]driver.Value, len(args))
		for i, a := range args {
			row[i] = a.Value
		}
		fakeState.rows[args[0].Value.(string)] = row
	}
	return driver.RowsAffected(1), nil
}

func (fakeConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	fakeState.Lock()
	defer fakeState.Unlock()
	rows := &fakeRows{}
	if row, ok := fakeState.rows[args[0].Value.(string)]; ok {
		rows.data = append(rows.data, row)
	}
	return rows, nil
}

func (r *fakeRows) Columns() []string {
	return []string{"id", "name", "location", "convert_to", "client_name", "size_bytes", "created_at"}
}
func (r *fakeRows) Close() error { return nil }
func (r *fakeRows) Next(dest []driver.Value) error {
	if r.i >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.i])
	r.i++
	return nil
}

func openFakeDB(t *testing.T) *sql.DB {
	t.Helper()
	fakeState.Lock()
	fakeState.rows = make(map[string][]driver.Value)
	fakeState.execErr = nil
	fakeState.Unlock()

	db, err := sql.Open("fakedocs", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPostgresRepository_CreateAndGet(t *testing.T) {
	repo, err := NewPostgresRepository(context.Background(), openFakeDB(t))
	require.NoError(t, err)

	created := time.Date(2024, 5, 15, 10, 30, 0, 0, time.UTC)
	doc := &Document{
		Name:       "PO-0047.pdf",
		Location:   "completed/PO-0047.pdf",
		ConvertTo:  "pdf",
		ClientName: "PO-0047",
		SizeBytes:  1234,
		CreatedAt:  created,
	}
	require.NoError(t, repo.Create(context.Background(), doc))
	require.NotEmpty(t, doc.ID)

	got, err := repo.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestPostgresRepository_GetMissing(t *testing.T) {
	repo, err := NewPostgresRepository(context.Background(), openFakeDB(t))
	require.NoError(t, err)

	_, err = repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresRepository_SchemaError(t *testing.T) {
	db := openFakeDB(t)
	fakeState.Lock()
	fakeState.execErr = errors.New("schema failed")
	fakeState.Unlock()

	_, err := NewPostgresRepository(context.Background(), db)
	assert.Error(t, err)

	_, err = NewPostgresRepository(context.Background(), nil)
	assert.Error(t, err)
}

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryRepository()

	doc := &Document{Name: "a.pdf", Location: "completed/a.pdf", ConvertTo: "pdf"}
	require.NoError(t, repo.Create(context.Background(), doc))
	assert.NotEmpty(t, doc.ID)
	assert.False(t, doc.CreatedAt.IsZero())

	got, err := repo.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, *doc, *got)

	_, err = repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
