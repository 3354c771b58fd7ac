package testdata

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"entgo.io/ent/dialect"
	"github.com/jordanlanch/bookworm/pkg/database"
)

// NewSQLiteClient opens a migrated in-memory SQLite database private to t
func NewSQLiteClient(t testing.TB) *database.Client {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", name)

	client, err := database.Open(dialect.SQLite, dsn, database.DefaultPoolConfig())
	if err != nil {
		t.Fatalf("failed opening sqlite: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	if err := client.Migrate(context.Background()); err != nil {
		t.Fatalf("failed migrating sqlite: %v", err)
	}
	return client
}
