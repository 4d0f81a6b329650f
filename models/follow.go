package models

import "time"

// Follow is a directed edge: UserID follows AuthorID. The composite unique
// index keeps at most one row per pair; creation goes through FirstOrCreate
// so a repeated follow is a no-op rather than a constraint violation.
type Follow struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index:idx_follow_pair,unique;index" json:"user_id"`
	AuthorID  uint      `gorm:"not null;index:idx_follow_pair,unique" json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}
