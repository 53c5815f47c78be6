package models

// Currency is reference data shared by all users.
type Currency struct {
	Base
	Code   string `gorm:"size:3;uniqueIndex;not null" json:"code"`
	Name   string `gorm:"not null" json:"name"`
	Symbol string `json:"symbol"`
}

// DefaultCurrencies are seeded on startup.
var DefaultCurrencies = []Currency{
	{Code: "RUB", Name: "Russian Ruble", Symbol: "₽"},
	{Code: "USD", Name: "US Dollar", Symbol: "$"},
	{Code: "EUR", Name: "Euro", Symbol: "€"},
}
