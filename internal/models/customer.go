package models

import (
	"strings"

	"gorm.io/gorm"
)

// Customer represents a debtor imported from the billing side of the system.
// The messaging core only reads customers - creation and updates happen
// through the import/CRUD surface, which lives outside this service.
type Customer struct {
	gorm.Model

	Phone               string  `json:"phone" gorm:"uniqueIndex"` // WhatsApp number, digits only
	Name                string  `json:"name"`
	Document            string  `json:"document"` // CPF/CNPJ
	AmountDue           float64 `json:"amount_due"`
	DueDate             string  `json:"due_date"`
	InvoiceNumber       string  `json:"invoice_number"`
	Status              string  `json:"status" gorm:"default:pending"` // pending | negotiating | paid | overdue
	OverdueInstallments int     `json:"overdue_installments" gorm:"default:0"`

	VehiclePlate   string `json:"vehicle_plate"`
	VehicleBrand   string `json:"vehicle_brand"`
	VehicleModel   string `json:"vehicle_model"`
	VehicleChassis string `json:"vehicle_chassis"`

	ContractStatus string `json:"contract_status"`
	Seller         string `json:"seller"`
	Notes          string `json:"notes"`
}

// BeforeCreate normalizes the phone to digits only so lookups by the
// messaging core always match.
func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	c.Phone = DigitsOnly(c.Phone)
	if c.Status == "" {
		c.Status = "pending"
	}
	return nil
}

// DigitsOnly strips every non-digit character from a phone number.
func DigitsOnly(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
