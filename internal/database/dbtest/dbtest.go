// Package dbtest opens throwaway in-memory SQLite databases with the
// application schema for repository tests.
package dbtest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/itsmewidii/fitriacookry/internal/config"
	"github.com/itsmewidii/fitriacookry/internal/database"
)

// Open returns connections to a private in-memory database that is closed
// when the test ends.
func Open(t testing.TB) *database.Connections {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conns, err := database.Open(config.Database{
		Driver:       "sqlite",
		WriterDSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conns.Close() })

	require.NoError(t, database.CreateSchema(context.Background(), conns.Writer))
	return conns
}
