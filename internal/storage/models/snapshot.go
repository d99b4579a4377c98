// internal/storage/models/snapshot.go
package models

import "time"

type SaleSnapshot struct {
	BaseModel
	Paused       bool      `gorm:"not null;default:false"`
	ForceActive  bool      `gorm:"not null;default:false"`
	RaisedWei    string    `gorm:"not null;type:numeric(78,0)"`
	Participants int64     `gorm:"not null"`
	FetchedAt    time.Time `gorm:"index;not null"`
}
