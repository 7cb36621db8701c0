package entity

type Visitor struct {
	BaseNoDelete
	Name  string  `db:"name"`
	Email string  `db:"email"`
	Phone *string `db:"phone"`
}
