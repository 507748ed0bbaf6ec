package store

import (
	"context"

	"storefront/internal/models"
)

var customerSort = sortSpec{
	columns: map[string]string{
		"name":      "name",
		"email":     "email",
		"createdAt": "created_at",
	},
	fallback: "created_at",
}

var staffSort = sortSpec{
	columns: map[string]string{
		"name":        "name",
		"email":       "email",
		"role":        "role",
		"joiningDate": "joining_date",
		"createdAt":   "created_at",
	},
	fallback: "created_at",
}

// ListCustomers retrieves a page of customers
func (s *Store) ListCustomers(ctx context.Context, p ListParams) (*Page[models.Customer], error) {
	var f filter
	f.search(p.Search, "name", "email", "phone")
	return list[models.Customer](ctx, s.db, "customers", f, customerSort.orderBy(p.Sort, p.Dir), p)
}

func (s *Store) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	var c models.Customer
	if err := s.db.GetContext(ctx, &c, "SELECT * FROM customers WHERE id = $1", id); err != nil {
		return nil, mapError(err, "customer")
	}
	return &c, nil
}

// GetCustomerByEmail matches the email case-insensitively
func (s *Store) GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	var c models.Customer
	if err := s.db.GetContext(ctx, &c, "SELECT * FROM customers WHERE LOWER(email) = LOWER($1)", email); err != nil {
		return nil, mapError(err, "customer")
	}
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, c *models.Customer) error {
	query := `
		INSERT INTO customers (name, email, phone, address, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query, c.Name, c.Email, c.Phone, c.Address, c.PasswordHash).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return mapError(err, "customer")
}

func (s *Store) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	query := `
		UPDATE customers
		SET name = $1, email = $2, phone = $3, address = $4, password_hash = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at`

	err := s.db.QueryRowxContext(ctx, query, c.Name, c.Email, c.Phone, c.Address, c.PasswordHash, c.ID).
		Scan(&c.UpdatedAt)
	return mapError(err, "customer")
}

// DeleteCustomer removes a customer; their orders keep the contact snapshot.
func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM customers WHERE id = $1", id)
	if err != nil {
		return mapError(err, "customer")
	}
	return expectOne(res, "customer")
}

// ListStaff retrieves a page of staff members
func (s *Store) ListStaff(ctx context.Context, p ListParams) (*Page[models.Staff], error) {
	var f filter
	f.search(p.Search, "name", "email", "phone")
	if p.Status != "" {
		f.add("status = ?", p.Status)
	}
	return list[models.Staff](ctx, s.db, "staff", f, staffSort.orderBy(p.Sort, p.Dir), p)
}

func (s *Store) GetStaffByID(ctx context.Context, id int64) (*models.Staff, error) {
	var st models.Staff
	if err := s.db.GetContext(ctx, &st, "SELECT * FROM staff WHERE id = $1", id); err != nil {
		return nil, mapError(err, "staff")
	}
	return &st, nil
}

func (s *Store) GetStaffByEmail(ctx context.Context, email string) (*models.Staff, error) {
	var st models.Staff
	if err := s.db.GetContext(ctx, &st, "SELECT * FROM staff WHERE LOWER(email) = LOWER($1)", email); err != nil {
		return nil, mapError(err, "staff")
	}
	return &st, nil
}

func (s *Store) CreateStaff(ctx context.Context, st *models.Staff) error {
	query := `
		INSERT INTO staff (name, email, phone, role, status, routes, password_hash, joining_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		st.Name, st.Email, st.Phone, st.Role, st.Status, st.Routes, st.PasswordHash, st.JoiningDate,
	).Scan(&st.ID, &st.CreatedAt, &st.UpdatedAt)
	return mapError(err, "staff")
}

func (s *Store) UpdateStaff(ctx context.Context, st *models.Staff) error {
	query := `
		UPDATE staff
		SET name = $1, email = $2, phone = $3, role = $4, status = $5, routes = $6,
		    password_hash = $7, joining_date = $8, updated_at = NOW()
		WHERE id = $9
		RETURNING updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		st.Name, st.Email, st.Phone, st.Role, st.Status, st.Routes, st.PasswordHash, st.JoiningDate, st.ID,
	).Scan(&st.UpdatedAt)
	return mapError(err, "staff")
}

func (s *Store) DeleteStaff(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM staff WHERE id = $1", id)
	if err != nil {
		return mapError(err, "staff")
	}
	return expectOne(res, "staff")
}

// CountStaff returns the number of staff rows; seeding uses it to stay
// idempotent.
func (s *Store) CountStaff(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM staff"); err != nil {
		return 0, err
	}
	return n, nil
}
