package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"paysuit/internal/models"
)

// Payment methods

func (s *PostgresStore) CreatePayment(ctx context.Context, p models.Payment) (models.Payment, error) {
	charges, err := json.Marshal(p.SelectedCharges)
	if err != nil {
		return models.Payment{}, err
	}

	var month, year sql.NullInt64
	if p.Period != nil {
		month = sql.NullInt64{Int64: int64(p.Period.Month), Valid: true}
		year = sql.NullInt64{Int64: int64(p.Period.Year), Valid: true}
	}

	err = s.db.QueryRowContext(ctx,
		`INSERT INTO payments (tenant_id, apartment_id, house_id, transaction_date,
		                       merchant_request_id, checkout_request_id, response_code,
		                       response_description, customer_message, total_amount,
		                       phone_number, selected_charges, period_month, period_year,
		                       payment_type, status)
		 VALUES ($1, $2, $3, NOW(), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 'pending')
		 RETURNING id, transaction_date, status`,
		p.TenantID, p.ApartmentID, p.HouseID,
		p.MerchantRequestID, p.CheckoutRequestID, p.ResponseCode,
		p.ResponseDescription, p.CustomerMessage, p.TotalAmount,
		p.PhoneNumber, charges, month, year, p.PaymentType,
	).Scan(&p.ID, &p.TransactionDate, &p.Status)

	if err != nil {
		return models.Payment{}, err
	}

	return p, nil
}

const paymentColumns = `id, tenant_id, apartment_id, house_id, transaction_date,
	merchant_request_id, checkout_request_id, response_code, response_description,
	customer_message, total_amount, phone_number, selected_charges,
	result_code, result_desc, mpesa_receipt_number, transaction_amount,
	period_month, period_year, payment_type, status`

func scanPayment(scan func(dest ...any) error) (models.Payment, error) {
	var p models.Payment
	var charges []byte
	var resultCode, txAmount, month, year sql.NullInt64
	var resultDesc, receipt sql.NullString

	err := scan(&p.ID, &p.TenantID, &p.ApartmentID, &p.HouseID, &p.TransactionDate,
		&p.MerchantRequestID, &p.CheckoutRequestID, &p.ResponseCode, &p.ResponseDescription,
		&p.CustomerMessage, &p.TotalAmount, &p.PhoneNumber, &charges,
		&resultCode, &resultDesc, &receipt, &txAmount,
		&month, &year, &p.PaymentType, &p.Status)
	if err == sql.ErrNoRows {
		return models.Payment{}, ErrNotFound
	}
	if err != nil {
		return models.Payment{}, err
	}

	_ = json.Unmarshal(charges, &p.SelectedCharges)
	if resultCode.Valid {
		code := int(resultCode.Int64)
		p.ResultCode = &code
	}
	p.ResultDesc = resultDesc.String
	p.MpesaReceiptNumber = receipt.String
	p.TransactionAmount = int(txAmount.Int64)
	if month.Valid && year.Valid {
		p.Period = &models.PaymentPeriod{Month: int(month.Int64), Year: int(year.Int64)}
	}

	return p, nil
}

func (s *PostgresStore) GetPaymentByCheckoutID(ctx context.Context, checkoutRequestID string) (models.Payment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE checkout_request_id = $1`,
		checkoutRequestID)
	return scanPayment(row.Scan)
}

// ApplyPaymentCallback settles a pending payment from the gateway callback.
// Only pending payments transition; a duplicate callback matches zero rows
// and returns applied=false with the current record.
func (s *PostgresStore) ApplyPaymentCallback(ctx context.Context, checkoutRequestID string, resultCode int, resultDesc, receipt string, amount int) (models.Payment, bool, error) {
	status := models.StatusFromResultCode(resultCode)

	result, err := s.db.ExecContext(ctx,
		`UPDATE payments
		 SET status = $1, result_code = $2, result_desc = $3,
		     mpesa_receipt_number = $4, transaction_amount = $5
		 WHERE checkout_request_id = $6 AND status = 'pending'`,
		status, resultCode, resultDesc, receipt, amount, checkoutRequestID,
	)
	if err != nil {
		return models.Payment{}, false, err
	}

	rows, _ := result.RowsAffected()

	p, err := s.GetPaymentByCheckoutID(ctx, checkoutRequestID)
	if err != nil {
		return models.Payment{}, false, err
	}

	return p, rows > 0, nil
}

func (s *PostgresStore) GetPaymentsByTenant(ctx context.Context, tenantID int) ([]models.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE tenant_id = $1 ORDER BY transaction_date DESC`,
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		p, err := scanPayment(rows.Scan)
		if err != nil {
			continue
		}
		payments = append(payments, p)
	}

	return payments, nil
}

func (s *PostgresStore) GetPaymentsByApartment(ctx context.Context, apartmentID int) ([]models.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE apartment_id = $1 ORDER BY transaction_date DESC`,
		apartmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		p, err := scanPayment(rows.Scan)
		if err != nil {
			continue
		}
		payments = append(payments, p)
	}

	return payments, nil
}
