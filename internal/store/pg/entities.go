package pg

import (
	"context"

	"backoffice.dev/internal/access"
)

func (s *Store) CreateCustomer(ctx context.Context, c access.Customer) (access.Customer, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	err := s.db.QueryRowContext(ctx, `
		insert into customers (name, email, phone1, phone2, city, notes)
		values ($1, $2, $3, $4, $5, $6)
		returning id
	`, c.Name, nullIfEmpty(c.Email), nullIfEmpty(c.Phone1), nullIfEmpty(c.Phone2),
		nullIfEmpty(c.City), nullIfEmpty(c.Notes)).Scan(&c.ID)
	if err != nil {
		return access.Customer{}, mapError(err)
	}
	return c, nil
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (access.Customer, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var c access.Customer
	err := s.db.QueryRowContext(ctx, `
		select id, name, coalesce(email, ''), coalesce(phone1, ''), coalesce(phone2, ''),
			coalesce(city, ''), coalesce(notes, '')
		from customers
		where id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Email, &c.Phone1, &c.Phone2, &c.City, &c.Notes)
	if err != nil {
		return access.Customer{}, mapError(err)
	}
	return c, nil
}

func (s *Store) ListCustomers(ctx context.Context, filter access.ListFilter) ([]access.Customer, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		select id, name, coalesce(email, ''), coalesce(phone1, ''), coalesce(phone2, ''),
			coalesce(city, ''), coalesce(notes, '')
		from customers
		where ($1 = '' or name ilike '%'||$1||'%' or email ilike '%'||$1||'%' or city ilike '%'||$1||'%')
		order by lower(name), id
		limit $2 offset $3
	`, filter.Query, filter.Limit, filter.Offset)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var customers []access.Customer
	for rows.Next() {
		var c access.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone1, &c.Phone2, &c.City, &c.Notes); err != nil {
			return nil, mapError(err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return customers, nil
}

func (s *Store) CountCustomers(ctx context.Context, query string) (int, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var count int
	err := s.db.QueryRowContext(ctx, `
		select count(*) from customers
		where ($1 = '' or name ilike '%'||$1||'%' or email ilike '%'||$1||'%' or city ilike '%'||$1||'%')
	`, query).Scan(&count)
	if err != nil {
		return 0, mapError(err)
	}
	return count, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, c access.Customer) (access.Customer, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		update customers
		set name = $2, email = $3, phone1 = $4, phone2 = $5, city = $6, notes = $7
		where id = $1
	`, c.ID, c.Name, nullIfEmpty(c.Email), nullIfEmpty(c.Phone1), nullIfEmpty(c.Phone2),
		nullIfEmpty(c.City), nullIfEmpty(c.Notes))
	if err != nil {
		return access.Customer{}, mapError(err)
	}
	if err := requireAffected(res); err != nil {
		return access.Customer{}, err
	}
	return c, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `delete from customers where id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(res)
}

func (s *Store) CreateProduct(ctx context.Context, p access.Product) (access.Product, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	err := s.db.QueryRowContext(ctx, `
		insert into products (name, price_cents)
		values ($1, $2)
		returning id
	`, p.Name, p.PriceCents).Scan(&p.ID)
	if err != nil {
		return access.Product{}, mapError(err)
	}
	return p, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (access.Product, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var p access.Product
	err := s.db.QueryRowContext(ctx, `
		select id, name, price_cents from products where id = $1
	`, id).Scan(&p.ID, &p.Name, &p.PriceCents)
	if err != nil {
		return access.Product{}, mapError(err)
	}
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context, filter access.ListFilter) ([]access.Product, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		select id, name, price_cents
		from products
		where ($1 = '' or name ilike '%'||$1||'%')
		order by lower(name), id
		limit $2 offset $3
	`, filter.Query, filter.Limit, filter.Offset)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var products []access.Product
	for rows.Next() {
		var p access.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents); err != nil {
			return nil, mapError(err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return products, nil
}

func (s *Store) CountProducts(ctx context.Context, query string) (int, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var count int
	err := s.db.QueryRowContext(ctx, `
		select count(*) from products
		where ($1 = '' or name ilike '%'||$1||'%')
	`, query).Scan(&count)
	if err != nil {
		return 0, mapError(err)
	}
	return count, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p access.Product) (access.Product, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		update products set name = $2, price_cents = $3 where id = $1
	`, p.ID, p.Name, p.PriceCents)
	if err != nil {
		return access.Product{}, mapError(err)
	}
	if err := requireAffected(res); err != nil {
		return access.Product{}, err
	}
	return p, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `delete from products where id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(res)
}
