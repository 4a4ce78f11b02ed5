package models

import "time"

type Operator struct {
	ID           int64     `json:"id"`
	OperatorCode string    `json:"operator_code"`
	OperatorName string    `json:"operator_name"`
	ServiceType  string    `json:"service_type"`
	IsActive     bool      `json:"is_active"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Bank struct {
	ID        int64     `json:"id"`
	BankCode  string    `json:"bank_code"`
	BankName  string    `json:"bank_name"`
	IFSC      *string   `json:"ifsc,omitempty"`
	IsActive  bool      `json:"is_active"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SyncReport struct {
	Fetched  int `json:"fetched"`
	Upserted int `json:"upserted"`
}
