package models

import (
	"time"

	"gorm.io/gorm"
)

// Post is a piece of content written by a user, optionally filed under a
// group and optionally carrying an attached image. PubDate is assigned at
// creation and is the sole feed ordering key (descending).
type Post struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	Text     string    `gorm:"type:text;not null" json:"text"`
	AuthorID uint      `gorm:"index;not null" json:"author_id"`
	GroupID  *uint     `gorm:"index" json:"group_id"`
	Image    string    `gorm:"size:512" json:"image"`
	PubDate  time.Time `gorm:"index;not null" json:"pub_date"`
	Author   User      `gorm:"foreignKey:AuthorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Group    *Group    `json:"group"`
	Comments []Comment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"comments"`
}

// BeforeCreate stamps PubDate when the caller did not set one explicitly.
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.PubDate.IsZero() {
		p.PubDate = time.Now()
	}
	return nil
}
