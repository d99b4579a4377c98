// internal/storage/models/transaction.go
package models

import "time"

// Transaction is one coordinator ticket. Amounts are decimal strings of wei.
type Transaction struct {
	BaseModel
	TicketID     string     `gorm:"uniqueIndex;not null;type:varchar(36)"`
	Account      string     `gorm:"index;not null;type:varchar(42)"`
	Action       string     `gorm:"not null;type:varchar(32)"`
	ValueWei     string     `gorm:"not null;type:numeric(78,0);default:0"`
	TxHash       string     `gorm:"index;type:varchar(66)"`
	Status       string     `gorm:"not null;type:varchar(20)"`
	ErrorMessage string     `gorm:"type:text"`
	DurationMs   int64      `gorm:"default:0"`
	SettledAt    *time.Time `gorm:"index"`
}

// TransactionUpdate is a status transition keyed by ticket id.
type TransactionUpdate struct {
	TicketID     string
	Status       string
	TxHash       string
	ErrorMessage string
	Duration     time.Duration
	SettledAt    *time.Time
}
