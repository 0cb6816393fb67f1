package models

import (
	"math"
	"time"

	"ecoledger/pkg/domain"
)

// Movement is an immutable registered commodity movement.
type Movement struct {
	ID          domain.MovementID
	ProducerID  domain.ProducerID
	CommodityID domain.CommodityID
	Type        string
	Quantity    domain.Quantity
	Unit        string
	OccurredAt  time.Time
	Location    *Location
	Attachments []Attachment
	CreatedAt   time.Time
}

// Location is present only with both coordinates.
type Location struct {
	Lat float64
	Lon float64
}

type Attachment struct {
	Type string
	URL  string
	Hash string
}

// NewMovement is the input to registration, before an id is assigned.
type NewMovement struct {
	ProducerID  domain.ProducerID
	CommodityID domain.CommodityID
	Type        string
	Quantity    domain.Quantity
	Unit        string
	OccurredAt  time.Time
	Location    *Location
	Attachments []Attachment
}

// ListFilter narrows a producer's movements. Zero values mean no filter.
type ListFilter struct {
	ProducerID  domain.ProducerID
	CommodityID domain.CommodityID
	From        *time.Time
	To          *time.Time
	Page        int // 1-based
	Size        int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// Offset is the number of rows skipped for the filter's page. It saturates
// at math.MaxInt instead of overflowing for huge pages.
func (f ListFilter) Offset() int {
	if f.Page < 1 || f.Size < 1 {
		return 0
	}
	if f.Page-1 > math.MaxInt/f.Size {
		return math.MaxInt
	}
	return (f.Page - 1) * f.Size
}

// Matches applies the non-paging parts of the filter.
func (f ListFilter) Matches(m *Movement) bool {
	if m.ProducerID != f.ProducerID {
		return false
	}
	if f.CommodityID != "" && m.CommodityID != f.CommodityID {
		return false
	}
	if f.From != nil && m.OccurredAt.Before(*f.From) {
		return false
	}
	if f.To != nil && m.OccurredAt.After(*f.To) {
		return false
	}
	return true
}

// Page is one page of movements plus the unpaged total.
type Page struct {
	Items []*Movement
	Total int
}
