// Package database provides test-only ent/Postgres client construction,
// layered on test/util's shared testcontainer and per-test schema.
package database

import (
	"testing"

	"github.com/codeready-toolchain/agentrt/pkg/database"
	"github.com/codeready-toolchain/agentrt/test/util"
)

// NewTestClient creates a test database client against a fresh,
// isolated schema on the shared PostgreSQL testcontainer (or
// CI_DATABASE_URL when set). The schema and its connections are
// cleaned up via t.Cleanup.
func NewTestClient(t *testing.T) *database.Client {
	t.Helper()
	entClient, db := util.SetupTestDatabase(t)
	return database.NewClientFromEnt(entClient, db)
}
