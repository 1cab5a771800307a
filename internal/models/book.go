package models

import (
	"math"
	"time"
)

// Categories a book may belong to.
const (
	CategoryFiction    = "Fiction"
	CategoryNonFiction = "Non-fiction"
	CategoryScience    = "Science"
	CategoryTechnology = "Technology"
	CategoryHistory    = "History"
	CategoryBiography  = "Biography"
	CategorySelfHelp   = "Self-help"
	CategoryChildren   = "Children"
	CategoryOther      = "Other"
)

// Book is a catalog entry.
type Book struct {
	ID              string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Title           string     `json:"title" gorm:"type:varchar(200);not null" validate:"required,max=200"`
	Author          string     `json:"author" gorm:"type:varchar(100);not null" validate:"required,max=100"`
	Description     string     `json:"description" gorm:"type:text;not null" validate:"required,max=2000"`
	Price           float64    `json:"price" gorm:"not null" validate:"gte=0"`
	ISBN            string     `json:"isbn" gorm:"uniqueIndex;type:varchar(20);not null" validate:"required,isbn_format"`
	CoverImage      string     `json:"coverImage" validate:"omitempty,url"`
	Category        string     `json:"category" gorm:"type:varchar(20);not null" validate:"required,oneof=Fiction Non-fiction Science Technology History Biography Self-help Children Other"`
	StockQuantity   int        `json:"stockQuantity" gorm:"not null;default:0" validate:"gte=0"`
	Publisher       string     `json:"publisher" validate:"max=200"`
	PublicationDate *time.Time `json:"publicationDate,omitempty"`
	PublicationYear int        `json:"publicationYear,omitempty" validate:"gte=0"`
	Language        string     `json:"language" validate:"max=50"`
	Pages           int        `json:"pages" validate:"gte=0"`
	Rating          float64    `json:"rating" gorm:"not null;default:0" validate:"gte=0,lte=5"`
	Featured        bool       `json:"featured" gorm:"not null;default:false"`
	Reviews         []Review   `json:"reviews" gorm:"foreignKey:BookID"`
	CreatedAt       time.Time  `json:"createdAt" gorm:"index"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Review is a reader's rating of a book.
type Review struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	BookID    string    `json:"bookId" gorm:"type:varchar(36);index;not null"`
	UserID    string    `json:"user" gorm:"type:varchar(36);not null"`
	Name      string    `json:"name" gorm:"not null" validate:"required"`
	Rating    int       `json:"rating" gorm:"not null" validate:"min=1,max=5"`
	Comment   string    `json:"comment" gorm:"type:text;not null" validate:"required,max=2000"`
	CreatedAt time.Time `json:"createdAt"`
}

// AverageRating returns the mean review rating rounded to one decimal, or 0 without reviews.
func AverageRating(reviews []Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return math.Round(float64(sum)/float64(len(reviews))*10) / 10
}

// HasReviewFrom reports whether userID already reviewed the book.
func (b *Book) HasReviewFrom(userID string) bool {
	for _, r := range b.Reviews {
		if r.UserID == userID {
			return true
		}
	}
	return false
}
