package model

// Customer owns zero or more projects.
type Customer struct {
	ID   int
	Name string
}
