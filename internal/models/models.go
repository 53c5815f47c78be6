// Package models holds the GORM models of the ledger.
package models

// All lists every model in dependency order, for AutoMigrate in tests and
// sqlite development databases.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Session{},
		&Currency{},
		&Account{},
		&Category{},
		&Transaction{},
		&AuditLog{},
	}
}
