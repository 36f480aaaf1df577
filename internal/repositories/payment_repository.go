package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/onlinecourse/backend/internal/models"
	"go.uber.org/zap"
)

const paymentColumns = `id, user_id, course_id, amount, currency, status, provider, invoice_id, checkout_url, created_at, updated_at, completed_at`

// paymentRepository implements PaymentRepository
type paymentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *sql.DB, logger *zap.Logger) *paymentRepository {
	return &paymentRepository{
		db:     db,
		logger: logger,
	}
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	payment := &models.Payment{}
	var invoiceID sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(
		&payment.ID,
		&payment.UserID,
		&payment.CourseID,
		&payment.Amount,
		&payment.Currency,
		&payment.Status,
		&payment.Provider,
		&invoiceID,
		&payment.CheckoutURL,
		&payment.CreatedAt,
		&payment.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}
	payment.InvoiceID = invoiceID.String
	if completedAt.Valid {
		t := completedAt.Time
		payment.CompletedAt = &t
	}
	return payment, nil
}

// Create inserts a new pending payment. CreatedAt is set by the caller so expiry
// checks use one clock.
func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (user_id, course_id, amount, currency, status, provider, invoice_id, checkout_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		payment.UserID,
		payment.CourseID,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.Provider,
		nullString(payment.InvoiceID),
		payment.CheckoutURL,
		payment.CreatedAt,
	)
	if err != nil {
		r.logger.Error("failed to create payment", zap.Error(err),
			zap.Int("user_id", payment.UserID),
			zap.Int("course_id", payment.CourseID),
		)
		return fmt.Errorf("failed to create payment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		r.logger.Error("failed to get last insert id", zap.Error(err))
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	payment.ID = int(id)
	return nil
}

// SetInvoice stores the provider reference of a payment
func (r *paymentRepository) SetInvoice(ctx context.Context, id int, invoiceID, checkoutURL string) error {
	query := `UPDATE payments SET invoice_id = ?, checkout_url = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, invoiceID, checkoutURL, id)
	if err != nil {
		r.logger.Error("failed to set payment invoice", zap.Error(err), zap.Int("payment_id", id))
		return fmt.Errorf("failed to set payment invoice: %w", err)
	}
	return requireAffected(r.logger, result, "payment")
}

// GetByID retrieves a payment
func (r *paymentRepository) GetByID(ctx context.Context, id int) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`

	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment not found: %w", models.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get payment", zap.Error(err), zap.Int("payment_id", id))
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return payment, nil
}

// GetByInvoice retrieves a payment by its provider reference
func (r *paymentRepository) GetByInvoice(ctx context.Context, provider models.PaymentProvider, invoiceID string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE provider = ? AND invoice_id = ?`

	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, provider, invoiceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment not found: %w", models.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get payment by invoice", zap.Error(err), zap.String("invoice_id", invoiceID))
		return nil, fmt.Errorf("failed to get payment by invoice: %w", err)
	}
	return payment, nil
}

// List returns a page of payments matching the filter, newest first
func (r *paymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentListItem, int, error) {
	where := []string{"1 = 1"}
	args := []any{}
	if filter.UserID != 0 {
		where = append(where, "p.user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		where = append(where, "p.status = ?")
		args = append(args, filter.Status)
	}
	if filter.Provider != "" {
		where = append(where, "p.provider = ?")
		args = append(args, filter.Provider)
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM payments p WHERE ` + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		r.logger.Error("failed to count payments", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}

	limit, offset := pagination(filter.Page, filter.Count)
	query := `
		SELECT p.id, p.user_id, p.course_id, p.amount, p.currency, p.status, p.provider, p.invoice_id,
			p.checkout_url, p.created_at, p.updated_at, p.completed_at, u.email, c.title
		FROM payments p
		JOIN users u ON u.id = p.user_id
		JOIN courses c ON c.id = p.course_id
		WHERE ` + whereClause + `
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		r.logger.Error("failed to list payments", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	payments := make([]models.PaymentListItem, 0)
	for rows.Next() {
		var item models.PaymentListItem
		var invoiceID sql.NullString
		var completedAt sql.NullTime
		if err := rows.Scan(
			&item.ID,
			&item.UserID,
			&item.CourseID,
			&item.Amount,
			&item.Currency,
			&item.Status,
			&item.Provider,
			&invoiceID,
			&item.CheckoutURL,
			&item.CreatedAt,
			&item.UpdatedAt,
			&completedAt,
			&item.UserEmail,
			&item.CourseTitle,
		); err != nil {
			r.logger.Error("failed to scan payment", zap.Error(err))
			return nil, 0, fmt.Errorf("failed to scan payment: %w", err)
		}
		item.InvoiceID = invoiceID.String
		if completedAt.Valid {
			t := completedAt.Time
			item.CompletedAt = &t
		}
		payments = append(payments, item)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating payments", zap.Error(err))
		return nil, 0, fmt.Errorf("error iterating payments: %w", err)
	}

	return payments, total, nil
}

// Cancel moves a pending payment to cancelled
func (r *paymentRepository) Cancel(ctx context.Context, id int) error {
	query := `UPDATE payments SET status = 'cancelled' WHERE id = ? AND status = 'pending'`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Error("failed to cancel payment", zap.Error(err), zap.Int("payment_id", id))
		return fmt.Errorf("failed to cancel payment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return models.ErrPaymentNotPending
	}
	return nil
}

// Complete is the single path that turns a payment into an enrollment.
// Inside one transaction it locks the payment row and:
//   - completed: reports AlreadyCompleted and writes nothing, so a revoked enrollment stays revoked
//   - failed or cancelled: returns ErrPaymentNotPending
//   - pending past the provider's expiry window: marks it failed and returns ErrPaymentExpired
//   - pending: marks it completed and inserts the enrollment
func (r *paymentRepository) Complete(ctx context.Context, id int, now time.Time, windows models.ExpiryWindows) (*models.CompletionResult, error) {
	var result models.CompletionResult
	var expired bool

	err := withTx(ctx, r.db, r.logger, func(tx *sql.Tx) error {
		query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ? FOR UPDATE`
		payment, err := scanPayment(tx.QueryRowContext(ctx, query, id))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("payment not found: %w", models.ErrNotFound)
		}
		if err != nil {
			r.logger.Error("failed to lock payment", zap.Error(err), zap.Int("payment_id", id))
			return fmt.Errorf("failed to lock payment: %w", err)
		}
		result.Payment = payment

		switch payment.Status {
		case models.PaymentStatusCompleted:
			result.AlreadyCompleted = true
			return nil
		case models.PaymentStatusPending:
		default:
			return models.ErrPaymentNotPending
		}

		if payment.IsExpired(now, windows.For(payment.Provider)) {
			if _, err := tx.ExecContext(ctx,
				`UPDATE payments SET status = 'failed' WHERE id = ? AND status = 'pending'`, id,
			); err != nil {
				r.logger.Error("failed to expire payment", zap.Error(err), zap.Int("payment_id", id))
				return fmt.Errorf("failed to expire payment: %w", err)
			}
			payment.Status = models.PaymentStatusFailed
			expired = true
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE payments SET status = 'completed', completed_at = ? WHERE id = ? AND status = 'pending'`,
			now, id,
		); err != nil {
			r.logger.Error("failed to complete payment", zap.Error(err), zap.Int("payment_id", id))
			return fmt.Errorf("failed to complete payment: %w", err)
		}
		payment.Status = models.PaymentStatusCompleted
		payment.CompletedAt = &now

		return grantEnrollmentTx(ctx, tx, payment.UserID, payment.CourseID, &payment.ID)
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, models.ErrPaymentExpired
	}

	return &result, nil
}

// ExpireStale marks pending payments older than their provider's window as failed and returns how many changed
func (r *paymentRepository) ExpireStale(ctx context.Context, now time.Time, windows models.ExpiryWindows) (int64, error) {
	query := `
		UPDATE payments SET status = 'failed'
		WHERE status = 'pending'
			AND (
				(provider <> 'bank_transfer' AND created_at < ?)
				OR (provider = 'bank_transfer' AND created_at < ?)
			)
	`

	result, err := r.db.ExecContext(ctx, query, now.Add(-windows.Gateway), now.Add(-windows.BankTransfer))
	if err != nil {
		r.logger.Error("failed to expire stale payments", zap.Error(err))
		return 0, fmt.Errorf("failed to expire stale payments: %w", err)
	}

	expired, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return expired, nil
}
