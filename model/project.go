package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ProjectType classifies who a project is run for.
type ProjectType int

const (
	ProjectTypeInternal ProjectType = 1
	ProjectTypeExternal ProjectType = 2
)

func (t ProjectType) String() string {
	switch t {
	case ProjectTypeInternal:
		return "Internal"
	case ProjectTypeExternal:
		return "External"
	}
	return fmt.Sprintf("ProjectType(%d)", int(t))
}

// Project belongs to the customer identified by CustomerID.
// Customer is only populated by join mapping; it is never a column.
type Project struct {
	ID          int
	Name        string
	Description string
	StartDate   time.Time
	EndDate     time.Time
	Price       decimal.Decimal
	Type        ProjectType
	CustomerID  int
	Customer    *Customer `db:"-"`
}
