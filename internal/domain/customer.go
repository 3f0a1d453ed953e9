package domain

import "time"

// ============================================================
// Customer records
// ============================================================

// Address is the street part of a customer address.
type Address struct {
	Street     string `json:"rua" validate:"required"`
	Number     string `json:"numero" validate:"required"`
	Complement string `json:"complemento,omitempty"`
	District   string `json:"bairro" validate:"required"`
}

// Customer is a registered customer record.
type Customer struct {
	ID           string    `json:"id"`
	FullName     string    `json:"nomeCompleto"`
	PostalCode   string    `json:"cep"`
	Address      Address   `json:"endereco"`
	Phone        string    `json:"telefone"`
	WhatsApp     string    `json:"whatsapp,omitempty"`
	City         string    `json:"cidade"`
	StateCode    string    `json:"uf"`
	Notes        string    `json:"observacoes,omitempty"`
	RegisteredAt time.Time `json:"dataCadastro"`
	CreatedBy    string    `json:"createdBy,omitempty"`
}

// CustomerInput is the body for POST /v1/customers.
type CustomerInput struct {
	FullName   string  `json:"nomeCompleto" validate:"required,min=2,personname"`
	PostalCode string  `json:"cep" validate:"required,cep"`
	Address    Address `json:"endereco"`
	Phone      string  `json:"telefone" validate:"required,phone"`
	WhatsApp   string  `json:"whatsapp" validate:"optphone"`
	City       string  `json:"cidade" validate:"required"`
	StateCode  string  `json:"uf" validate:"required,len=2,uf"`
	Notes      string  `json:"observacoes"`
}

// CustomerPatch is the body for PATCH /v1/customers/{id}. Nil fields are left untouched;
// an empty WhatsApp or Notes clears the stored value.
type CustomerPatch struct {
	FullName   *string  `json:"nomeCompleto,omitempty" validate:"omitempty,min=2,personname"`
	PostalCode *string  `json:"cep,omitempty" validate:"omitempty,cep"`
	Address    *Address `json:"endereco,omitempty"`
	Phone      *string  `json:"telefone,omitempty" validate:"omitempty,phone"`
	WhatsApp   *string  `json:"whatsapp,omitempty" validate:"omitempty,optphone"`
	City       *string  `json:"cidade,omitempty"`
	StateCode  *string  `json:"uf,omitempty" validate:"omitempty,len=2,uf"`
	Notes      *string  `json:"observacoes,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p *CustomerPatch) IsEmpty() bool {
	return p.FullName == nil && p.PostalCode == nil && p.Address == nil &&
		p.Phone == nil && p.WhatsApp == nil && p.City == nil &&
		p.StateCode == nil && p.Notes == nil
}

// Apply copies the patched fields onto c.
func (p *CustomerPatch) Apply(c *Customer) {
	if p.FullName != nil {
		c.FullName = *p.FullName
	}
	if p.PostalCode != nil {
		c.PostalCode = *p.PostalCode
	}
	if p.Address != nil {
		c.Address = *p.Address
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	if p.WhatsApp != nil {
		c.WhatsApp = *p.WhatsApp
	}
	if p.City != nil {
		c.City = *p.City
	}
	if p.StateCode != nil {
		c.StateCode = *p.StateCode
	}
	if p.Notes != nil {
		c.Notes = *p.Notes
	}
}

// MigrationReport is the outcome of copying local records into the hosted store.
type MigrationReport struct {
	Success  bool     `json:"success"`
	Migrated int      `json:"migrated"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

// ============================================================
// Postal code lookup
// ============================================================

// PostalAddress is the address auto-filled from a postal code.
type PostalAddress struct {
	PostalCode string `json:"cep"`
	Street     string `json:"logradouro"`
	Complement string `json:"complemento,omitempty"`
	District   string `json:"bairro"`
	City       string `json:"localidade"`
	StateCode  string `json:"uf"`
}
