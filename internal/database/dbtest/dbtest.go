// Package dbtest provides throwaway in-memory databases for package tests.
package dbtest

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/orders/internal/database"
	"github.com/Additional-Code/orders/internal/entity"
)

var seq atomic.Int64

// New opens an isolated in-memory sqlite database with the orders schema.
func New(t testing.TB) *database.Connections {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))

	db, err := database.Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.NewCreateTable().Model((*entity.Order)(nil)).IfNotExists().Exec(context.Background())
	require.NoError(t, err)

	return database.Single(db)
}
