// Package fixture builds the entities the scenarios insert.
package fixture

import (
	"context"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"

	"github.com/mickamy/rowmap/model"
	"github.com/mickamy/rowmap/orm"
)

const (
	CustomerName = "Apple"
	ProjectName  = "Simple project"
)

// Users builds n users with generated names. ID stays 0 so that the
// database assigns identities. A zero seed draws a random one.
func Users(n int, seed int64) []model.User {
	faker := gofakeit.New(seed)
	users := make([]model.User, n)
	for i := range users {
		users[i] = model.User{
			UserName:  faker.Username(),
			FirstName: faker.FirstName(),
			LastName:  faker.LastName(),
		}
	}
	return users
}

// Customer returns the customer every project scenario starts from.
func Customer() model.Customer {
	return model.Customer{Name: CustomerName}
}

// Project returns an external project for customerID that started two
// months before the clock in ctx and ends ten months after it.
func Project(ctx context.Context, customerID int) model.Project {
	now := orm.Now(ctx)
	return model.Project{
		Name:        ProjectName,
		Description: "This is quite simple",
		StartDate:   now.AddDate(0, -2, 0),
		EndDate:     now.AddDate(0, 10, 0),
		Price:       decimal.NewFromInt(100000),
		Type:        model.ProjectTypeExternal,
		CustomerID:  customerID,
	}
}

// ConstructedUsers returns users built through their constructor.
func ConstructedUsers() []*model.UserNonDefaultConstructor {
	first := model.NewUserNonDefaultConstructor("firstUser")
	first.FirstName, first.LastName = "FirstName1", "LastName1"
	second := model.NewUserNonDefaultConstructor("secondUser")
	second.FirstName, second.LastName = "FirstName2", "LastName2"
	return []*model.UserNonDefaultConstructor{first, second}
}
