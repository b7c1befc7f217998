package workflow

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

func forUpdate() clause.Locking {
	return clause.Locking{Strength: "UPDATE"}
}

func decimalZero() decimal.Decimal {
	return decimal.Zero
}
