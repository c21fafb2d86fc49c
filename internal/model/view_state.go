package model

import "time"

// ViewStateRecord persists one panel view state between requests.
type ViewStateRecord struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Payload   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"index"`
}
