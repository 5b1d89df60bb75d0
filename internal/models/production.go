package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Production struct {
	Base
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	Project   *Project  `json:"-"`

	PricePerBarrel  Money     `gorm:"not null" json:"price_per_barrel"`
	NumberOfBarrels int64     `gorm:"not null" json:"number_of_barrels"`
	Cost            Money     `gorm:"not null;default:0" json:"cost"`
	ProductionDate  time.Time `gorm:"type:date;not null;index" json:"production_date"`
	SubmittedBy     string    `gorm:"size:50;not null" json:"submitted_by"`
}

func (Production) TableName() string { return "production" }

func (p *Production) Revenue() decimal.Decimal {
	return p.PricePerBarrel.Mul(decimal.NewFromInt(p.NumberOfBarrels))
}

func (p *Production) Profit() decimal.Decimal {
	return p.Revenue().Sub(p.Cost.Decimal)
}
