package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"paysuit/internal/models"
)

// Apartment / house methods

// CreateApartment inserts the apartment and auto-creates one vacant house
// per door, numbered sequentially.
func (s *PostgresStore) CreateApartment(ctx context.Context, a models.Apartment) (models.Apartment, error) {
	charges, err := json.Marshal(a.AdditionalCharges)
	if err != nil {
		return models.Apartment{}, err
	}
	disbursement, err := json.Marshal(a.Disbursement)
	if err != nil {
		return models.Apartment{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Apartment{}, err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO apartments (name, landlord_id, number_of_doors, house_type, rent_amount,
		                         additional_charges, with_deposit, deposit_amount, landlord_phone,
		                         disbursement, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		 RETURNING id, created_at`,
		a.Name, a.LandlordID, a.NumberOfDoors, a.HouseType, a.RentAmount,
		charges, a.WithDeposit, a.DepositAmount, a.LandlordPhoneNumber, disbursement,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return models.Apartment{}, err
	}

	for door := 1; door <= a.NumberOfDoors; door++ {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO houses (apartment_id, door_number, status, rent_amount, deposit_amount,
			                     additional_charges, created_at, updated_at)
			 VALUES ($1, $2, 'vacant', $3, $4, $5, NOW(), NOW())`,
			a.ID, fmt.Sprintf("%d", door), a.RentAmount, a.DepositAmount, charges,
		)
		if err != nil {
			return models.Apartment{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Apartment{}, err
	}

	return a, nil
}

const apartmentColumns = `id, name, landlord_id, number_of_doors, house_type, rent_amount,
	additional_charges, with_deposit, deposit_amount, landlord_phone, disbursement, created_at`

func scanApartment(scan func(dest ...any) error) (models.Apartment, error) {
	var a models.Apartment
	var charges, disbursement []byte

	err := scan(&a.ID, &a.Name, &a.LandlordID, &a.NumberOfDoors, &a.HouseType, &a.RentAmount,
		&charges, &a.WithDeposit, &a.DepositAmount, &a.LandlordPhoneNumber, &disbursement, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return models.Apartment{}, ErrNotFound
	}
	if err != nil {
		return models.Apartment{}, err
	}

	_ = json.Unmarshal(charges, &a.AdditionalCharges)
	_ = json.Unmarshal(disbursement, &a.Disbursement)
	return a, nil
}

func (s *PostgresStore) GetApartment(ctx context.Context, id int) (models.Apartment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+apartmentColumns+` FROM apartments WHERE id = $1`, id)
	return scanApartment(row.Scan)
}

func (s *PostgresStore) GetApartmentsByLandlord(ctx context.Context, landlordID int) ([]models.Apartment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+apartmentColumns+` FROM apartments WHERE landlord_id = $1 ORDER BY created_at DESC`,
		landlordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apartments []models.Apartment
	for rows.Next() {
		a, err := scanApartment(rows.Scan)
		if err != nil {
			continue
		}
		apartments = append(apartments, a)
	}

	return apartments, nil
}

const houseColumns = `id, apartment_id, door_number, status, tenant_id, rent_amount,
	deposit_amount, additional_charges, created_at, updated_at`

func scanHouse(scan func(dest ...any) error) (models.House, error) {
	var h models.House
	var tenant sql.NullInt64
	var charges []byte

	err := scan(&h.ID, &h.ApartmentID, &h.DoorNumber, &h.Status, &tenant, &h.RentAmount,
		&h.DepositAmount, &charges, &h.CreatedAt, &h.UpdatedAt)
	if err == sql.ErrNoRows {
		return models.House{}, ErrNotFound
	}
	if err != nil {
		return models.House{}, err
	}

	h.TenantID = int(tenant.Int64)
	_ = json.Unmarshal(charges, &h.AdditionalCharges)
	return h, nil
}

func (s *PostgresStore) GetHouse(ctx context.Context, id int) (models.House, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+houseColumns+` FROM houses WHERE id = $1`, id)
	return scanHouse(row.Scan)
}

func (s *PostgresStore) GetHouses(ctx context.Context, apartmentID int) ([]models.House, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+houseColumns+` FROM houses WHERE apartment_id = $1 ORDER BY door_number`,
		apartmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var houses []models.House
	for rows.Next() {
		h, err := scanHouse(rows.Scan)
		if err != nil {
			continue
		}
		houses = append(houses, h)
	}

	return houses, nil
}

func (s *PostgresStore) GetHousesByTenant(ctx context.Context, tenantID int) ([]models.House, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+houseColumns+` FROM houses WHERE tenant_id = $1 ORDER BY created_at`,
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var houses []models.House
	for rows.Next() {
		h, err := scanHouse(rows.Scan)
		if err != nil {
			continue
		}
		houses = append(houses, h)
	}

	return houses, nil
}

// AssignTenant moves a vacant house to occupied. Assigning an occupied
// house is rejected.
func (s *PostgresStore) AssignTenant(ctx context.Context, houseID, tenantID int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE houses SET tenant_id = $1, status = 'occupied', updated_at = NOW()
		 WHERE id = $2 AND status = 'vacant'`,
		tenantID, houseID,
	)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("house %d is not vacant", houseID)
	}

	return nil
}

func (s *PostgresStore) VacateHouse(ctx context.Context, houseID int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE houses SET tenant_id = NULL, status = 'vacant', updated_at = NOW() WHERE id = $1`,
		houseID,
	)
	return err
}
