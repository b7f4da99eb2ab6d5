package models

import "time"

type HouseType string

const (
	HouseTypeBedSitter   HouseType = "bed_sitter"
	HouseTypeSingleStone HouseType = "single_stone"
	HouseTypeSingleWood  HouseType = "single_wood"
)

func ValidHouseType(t HouseType) bool {
	switch t {
	case HouseTypeBedSitter, HouseTypeSingleStone, HouseTypeSingleWood:
		return true
	}
	return false
}

// ChargeItem is a labeled extra charge on top of rent (garbage, security...).
type ChargeItem struct {
	Label  string `json:"label"`
	Amount int    `json:"amount"`
}

type AdditionalCharges struct {
	Water       int          `json:"water,omitempty"`
	Electricity int          `json:"electricity,omitempty"`
	Other       []ChargeItem `json:"other,omitempty"`
}

// Total sums all charges.
func (c AdditionalCharges) Total() int {
	total := c.Water + c.Electricity
	for _, item := range c.Other {
		total += item.Amount
	}
	return total
}

// DisbursementAccount is where collected rent is paid out: either a
// Safaricom number or a bank paybill + account.
type DisbursementAccount struct {
	Type              string `json:"type"` // "safaricom" or "bank"
	SafaricomNumber   string `json:"safaricom_number,omitempty"`
	BankPaybill       string `json:"bank_paybill,omitempty"`
	BankAccountNumber string `json:"bank_account_number,omitempty"`
}

type Apartment struct {
	ID                  int                 `json:"id"`
	Name                string              `json:"name"`
	LandlordID          int                 `json:"landlord_id"`
	NumberOfDoors       int                 `json:"number_of_doors"`
	HouseType           HouseType           `json:"house_type"`
	RentAmount          int                 `json:"rent_amount"`
	AdditionalCharges   AdditionalCharges   `json:"additional_charges"`
	WithDeposit         bool                `json:"with_deposit"`
	DepositAmount       int                 `json:"deposit_amount,omitempty"`
	LandlordPhoneNumber string              `json:"landlord_phone_number"`
	Disbursement        DisbursementAccount `json:"disbursement_account"`
	CreatedAt           time.Time           `json:"created_at"`
}
