// Package billing содержит статическую таблицу пакетов кредитов, которые
// бизнес может купить через hosted checkout.
package billing

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
)

// Currency — валюта всех пакетов.
const Currency = "usd"

// ErrUnknownPackage возвращается, если идентификатор пакета не найден в таблице.
var ErrUnknownPackage = errors.New("unknown credit package")

// Package описывает ценовой уровень пакета кредитов.
type Package struct {
	ID              string          `json:"id"`
	Credits         int             `json:"credits"`
	Price           decimal.Decimal `json:"price"`           // Цена в долларах
	DiscountPercent int             `json:"discountPercent"` // 0, если скидки нет
	Recommended     bool            `json:"recommended"`
}

// PerCreditPrice возвращает цену одного кредита, округлённую до 4 знаков.
func (p Package) PerCreditPrice() decimal.Decimal {
	if p.Credits <= 0 {
		return decimal.Zero
	}
	return p.Price.DivRound(decimal.NewFromInt(int64(p.Credits)), 4)
}

// UnitAmount возвращает цену в минимальных единицах валюты (центах).
func (p Package) UnitAmount() int64 {
	return p.Price.Shift(2).Round(0).IntPart()
}

// Name возвращает человекочитаемое название для строки чека.
func (p Package) Name() string {
	return decimal.NewFromInt(int64(p.Credits)).String() + " Credits"
}

var packages = map[string]Package{
	"100credits": {
		ID:      "100credits",
		Credits: 100,
		Price:   decimal.NewFromInt(99),
	},
	"500credits": {
		ID:              "500credits",
		Credits:         500,
		Price:           decimal.NewFromInt(450),
		DiscountPercent: 10,
	},
	"1000credits": {
		ID:              "1000credits",
		Credits:         1000,
		Price:           decimal.NewFromInt(850),
		DiscountPercent: 15,
		Recommended:     true,
	},
	"2500credits": {
		ID:              "2500credits",
		Credits:         2500,
		Price:           decimal.NewFromInt(2000),
		DiscountPercent: 20,
	},
}

// Lookup возвращает пакет по идентификатору.
func Lookup(id string) (Package, error) {
	p, ok := packages[id]
	if !ok {
		return Package{}, ErrUnknownPackage
	}
	return p, nil
}

// All возвращает все пакеты, отсортированные по количеству кредитов.
func All() []Package {
	res := make([]Package, 0, len(packages))
	for _, p := range packages {
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Credits < res[j].Credits })
	return res
}
