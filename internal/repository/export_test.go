package repository

import "database/sql"

// Hooks for repository_test, which drives the services against the container
// database. The services import this package, so those tests live outside it.
var (
	CreateTestUser     = createTestUser
	CreateTestCategory = createTestCategory
	CreateTestProduct  = createTestProduct
)

func IntegrationDB() *sql.DB {
	return testDB
}
