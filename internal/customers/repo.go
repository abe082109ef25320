package customers

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrAddressNotFound  = errors.New("address not found")
)

type Customer struct {
	ID          string
	Name        string
	Email       string
	Phone       string
	DiscountPct float64 // >0 utk akun business-tier
}

type Address struct {
	ID            string
	CustomerID    string
	RecipientName string
	Phone         string
	Address       string
	City          string
	Province      string
	PostalCode    string
}

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) GetCustomer(ctx context.Context, id string) (Customer, error) {
	var c Customer
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, email, phone, COALESCE(discount_pct, 0)
		FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.DiscountPct)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrCustomerNotFound
	}
	return c, err
}

// GetAddress dibatasi ke pemiliknya; customer tidak bisa checkout
// pakai address id milik orang lain.
func (r *Repo) GetAddress(ctx context.Context, id, customerID string) (Address, error) {
	var a Address
	err := r.DB.QueryRow(ctx, `
		SELECT id, customer_id, recipient_name, phone, address, city, province, postal_code
		FROM addresses WHERE id = $1 AND customer_id = $2`, id, customerID).
		Scan(&a.ID, &a.CustomerID, &a.RecipientName, &a.Phone, &a.Address, &a.City, &a.Province, &a.PostalCode)
	if errors.Is(err, pgx.ErrNoRows) {
		return Address{}, ErrAddressNotFound
	}
	return a, err
}
