package models

// All lists every persisted model, in dependency order, for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Category{},
		&Transaction{},
		&Budget{},
		&RecurringTransaction{},
		&Goal{},
		&SavingsTransaction{},
		&SplitGroup{},
		&SplitGroupMember{},
		&ExpenseSplit{},
		&BalanceSnapshot{},
		&AuditLog{},
	}
}
