// Package scenario runs the data-access scenarios against a database: bulk
// insert and read back, multi-result reads, join mapping, constructor-built
// entities and transactional deletes.
package scenario

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mickamy/rowmap/internal/fixture"
	"github.com/mickamy/rowmap/model"
	"github.com/mickamy/rowmap/orm"
)

const (
	insertUser     = "insert into users (UserName, FirstName, LastName) values (@userName, @firstName, @lastName)"
	insertCustomer = "insert into customers (Name) values (@name)"
	insertProject  = "insert into projects (Name, Description, StartDate, EndDate, Price, Type, CustomerId) " +
		"values (@name, @description, @startDate, @endDate, @price, @type, @customerId)"

	selectCustomerAndProjects = "select * from customers where Id = @customerId;" +
		"select * from projects where CustomerId = @customerId;"

	selectProjectsWithCustomer = "select * from customers c join projects p on c.Id = p.CustomerId where c.Id = @customerId"

	// Unquoted Id folds to lower case on PostgreSQL.
	identityColumn = "id"
)

// Cleanup deletes every project, customer and user, children first.
func Cleanup(ctx context.Context, q orm.Querier) error {
	if _, err := orm.From[model.Project](q).DeleteAll(ctx); err != nil {
		return err
	}
	if _, err := orm.From[model.Customer](q).DeleteAll(ctx); err != nil {
		return err
	}
	_, err := orm.From[model.User](q).DeleteAll(ctx)
	return err
}

// InsertUsers inserts users one statement per element and reads the whole
// table back.
func InsertUsers(ctx context.Context, q orm.Querier, users []model.User) ([]model.User, error) {
	if _, err := orm.Execute(ctx, q, insertUser, users); err != nil {
		return nil, err
	}
	return orm.Query[model.User](ctx, q, "select * from users", nil)
}

// InsertCustomerWithProject inserts the fixture customer and one project
// owned by it, returning the customer's generated Id.
func InsertCustomerWithProject(ctx context.Context, q orm.Querier) (int, error) {
	customerID, err := orm.InsertID(ctx, q, insertCustomer, fixture.Customer(), identityColumn)
	if err != nil {
		return 0, fmt.Errorf("insert customer: %w", err)
	}
	project := fixture.Project(ctx, int(customerID))
	if _, err := orm.InsertID(ctx, q, insertProject, project, identityColumn); err != nil {
		return 0, fmt.Errorf("insert project: %w", err)
	}
	return int(customerID), nil
}

// CustomerWithProjects reads a customer and its projects with one batch.
func CustomerWithProjects(ctx context.Context, q orm.Querier, customerID int) (_ model.Customer, _ []model.Project, err error) {
	grid, err := orm.QueryMultiple(ctx, q, selectCustomerAndProjects, map[string]any{"customerId": customerID})
	if err != nil {
		return model.Customer{}, nil, err
	}
	defer func() {
		if cerr := grid.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	customers, err := orm.Read[model.Customer](ctx, grid)
	if err != nil {
		return model.Customer{}, nil, err
	}
	if len(customers) == 0 {
		return model.Customer{}, nil, orm.ErrNotFound
	}
	projects, err := orm.Read[model.Project](ctx, grid)
	if err != nil {
		return model.Customer{}, nil, err
	}
	return customers[0], projects, nil
}

// ProjectsWithCustomer joins customers and projects, attaching a copy of the
// customer to every project row.
func ProjectsWithCustomer(ctx context.Context, q orm.Querier, customerID int) ([]model.Project, error) {
	return orm.QueryJoin(ctx, q, selectProjectsWithCustomer, map[string]any{"customerId": customerID}, orm.DefaultSplitOn,
		func(c model.Customer, p model.Project) model.Project {
			p.Customer = &c
			return p
		})
}

// InsertConstructedUsers inserts users built through their constructor and
// rebuilds them the same way from the rows read back.
func InsertConstructedUsers(
	ctx context.Context, q orm.Querier, users []*model.UserNonDefaultConstructor,
) ([]*model.UserNonDefaultConstructor, error) {
	if _, err := orm.Execute(ctx, q, insertUser, users); err != nil {
		return nil, err
	}
	rows, err := orm.QueryRows(ctx, q, "select * from "+orm.TableNameOf[model.UserNonDefaultConstructor](), nil)
	if err != nil {
		return nil, err
	}
	fetched := make([]*model.UserNonDefaultConstructor, len(rows))
	for i, row := range rows {
		u := model.NewUserNonDefaultConstructor(row.String("UserName"))
		u.ID = int(row.Int64("Id"))
		u.FirstName = row.String("FirstName")
		u.LastName = row.String("LastName")
		fetched[i] = u
	}
	return fetched, nil
}

// DeleteAllInTransaction deletes every row inside the transaction of one
// session. Without commit, closing the session rolls the deletes back.
// It returns the number of rows the transaction deleted.
func DeleteAllInTransaction(ctx context.Context, db *orm.DB, commit bool) (int64, error) {
	var deleted int64
	err := orm.WithSession(ctx, db, func(s *orm.Session) error {
		tx, err := s.Begin(ctx)
		if err != nil {
			return err
		}
		for _, table := range []*orm.Table[struct{}]{
			orm.FromTable[struct{}](tx, orm.TableNameOf[model.Project]()),
			orm.FromTable[struct{}](tx, orm.TableNameOf[model.Customer]()),
			orm.FromTable[struct{}](tx, orm.TableNameOf[model.User]()),
		} {
			n, err := table.DeleteAll(ctx)
			if err != nil {
				return err
			}
			deleted += n
		}
		if commit {
			return tx.Commit()
		}
		return nil
	})
	return deleted, err
}

// RunAll runs every scenario once against db and logs what it observed.
// The tables are emptied before and after.
func RunAll(ctx context.Context, db *orm.DB, users int, log *slog.Logger) error {
	if err := Cleanup(ctx, db); err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}

	fetched, err := InsertUsers(ctx, db, fixture.Users(users, 0))
	if err != nil {
		return fmt.Errorf("insert users: %w", err)
	}
	log.InfoContext(ctx, "multiple insert with query", slog.Int("inserted", users), slog.Int("fetched", len(fetched)))

	customerID, err := InsertCustomerWithProject(ctx, db)
	if err != nil {
		return err
	}
	customer, projects, err := CustomerWithProjects(ctx, db, customerID)
	if err != nil {
		return fmt.Errorf("multiple query: %w", err)
	}
	log.InfoContext(ctx, "multiple query", slog.String("customer", customer.Name), slog.Int("projects", len(projects)))

	joined, err := ProjectsWithCustomer(ctx, db, customerID)
	if err != nil {
		return fmt.Errorf("multiple mapping: %w", err)
	}
	for _, p := range joined {
		log.InfoContext(ctx, "multiple mapping", slog.String("project", p.Name), slog.String("customer", p.Customer.Name))
	}

	constructed, err := InsertConstructedUsers(ctx, db, fixture.ConstructedUsers())
	if err != nil {
		return fmt.Errorf("non-default constructor: %w", err)
	}
	log.InfoContext(ctx, "query with non default constructor", slog.Int("fetched", len(constructed)))

	rolledBack, err := DeleteAllInTransaction(ctx, db, false)
	if err != nil {
		return fmt.Errorf("rollback delete: %w", err)
	}
	remaining, err := orm.From[model.User](db).Count(ctx)
	if err != nil {
		return err
	}
	log.InfoContext(ctx, "uncommitted delete", slog.Int64("deleted", rolledBack), slog.Int64("users_remaining", remaining))

	committed, err := DeleteAllInTransaction(ctx, db, true)
	if err != nil {
		return fmt.Errorf("committed delete: %w", err)
	}
	log.InfoContext(ctx, "committed delete", slog.Int64("deleted", committed))
	return nil
}
