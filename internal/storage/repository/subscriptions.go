package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/GRI-ESPCI/intrarez/internal/models"
)

// FindOffer возвращает тарифное предложение по слагу или nil.
func (s *Storage) FindOffer(ctx context.Context, slug string) (*models.Offer, error) {
	const op = "storage.FindOffer"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT slug, name_fr, name_en, description_fr, description_en,
					 price, months, days, visible, active
			  FROM offers WHERE slug = $1`
	o := &models.Offer{}
	err := s.DB.QueryRowContext(ctx, query, slug).Scan(
		&o.Slug, &o.NameFr, &o.NameEn, &o.DescriptionFr, &o.DescriptionEn,
		&o.Price, &o.Months, &o.Days, &o.Visible, &o.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return o, nil
}

// ListOffers возвращает видимые активные предложения каталога.
func (s *Storage) ListOffers(ctx context.Context) ([]*models.Offer, error) {
	const op = "storage.ListOffers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT slug, name_fr, name_en, description_fr, description_en,
					 price, months, days, visible, active
			  FROM offers WHERE visible AND active ORDER BY price`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Offer
	for rows.Next() {
		o := &models.Offer{}
		if err := rows.Scan(
			&o.Slug, &o.NameFr, &o.NameEn, &o.DescriptionFr, &o.DescriptionEn,
			&o.Price, &o.Months, &o.Days, &o.Visible, &o.Active); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListSubscriptionsByAccount возвращает все подписки аккаунта.
func (s *Storage) ListSubscriptionsByAccount(ctx context.Context, accountID int) ([]*models.Subscription, error) {
	const op = "storage.ListSubscriptionsByAccount"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, account_id, offer_slug, payment_id, start_date, end_date
			  FROM subscriptions WHERE account_id = $1 ORDER BY start_date DESC`
	rows, err := s.DB.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Subscription
	for rows.Next() {
		sub := &models.Subscription{}
		var paymentID sql.NullInt64
		if err := rows.Scan(&sub.ID, &sub.AccountID, &sub.OfferSlug,
			&paymentID, &sub.Start, &sub.End); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if paymentID.Valid {
			id := int(paymentID.Int64)
			sub.PaymentID = &id
		}
		result = append(result, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CreateSubscription сохраняет подписку и возвращает её ID.
func (s *Storage) CreateSubscription(ctx context.Context, sub models.Subscription) (int, error) {
	const op = "storage.CreateSubscription"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var id int
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO subscriptions (account_id, offer_slug, payment_id, start_date, end_date)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		sub.AccountID, sub.OfferSlug, sub.PaymentID, sub.Start, sub.End).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// CreatePayment сохраняет запись о платеже и возвращает её ID.
func (s *Storage) CreatePayment(ctx context.Context, payment models.Payment) (int, error) {
	const op = "storage.CreatePayment"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var id int
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO payments (account_id, amount, created, payed, status, correlation, gri_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		payment.AccountID, payment.Amount, payment.Created, payment.Payed,
		payment.Status, payment.Correlation, payment.GriID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}
