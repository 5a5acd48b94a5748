package models

import "github.com/shopspring/decimal"

// MonetaryCandidate is one amount extracted from recognized receipt text.
type MonetaryCandidate struct {
	RawText string          `json:"rawText"`
	Value   decimal.Decimal `json:"value"`
	Rank    int             `json:"rank"`
}

// SplitResult is the outcome of dividing a total across a party.
type SplitResult struct {
	Total     decimal.Decimal `json:"total"`
	People    int             `json:"people"`
	PerPerson decimal.Decimal `json:"perPerson"`
}
