package models

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Money is an exact decimal column. Postgres stores it as numeric; sqlite
// stores the decimal string as text, since a numeric column there would
// coerce it to an IEEE double.
type Money struct {
	decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money { return Money{d} }

// GormDBDataType takes precision and scale from the field's tags,
// defaulting to numeric(18,2).
func (Money) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "sqlite" {
		return "text"
	}
	precision, scale := 18, 2
	if field.Precision > 0 {
		precision = field.Precision
	}
	if field.Scale > 0 {
		scale = field.Scale
	}
	return fmt.Sprintf("numeric(%d,%d)", precision, scale)
}
