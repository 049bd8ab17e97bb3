package campaigns

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/shopspring/decimal"
)

// ErrInvalidInput — форма кампании заполнена неверно.
var ErrInvalidInput = errors.New("invalid campaign input")

// Type — модель оплаты кампании.
type Type string

const (
	TypePaid   Type = "paid"
	TypeCredit Type = "credit"
)

// Platforms — поддерживаемые соцсети.
var Platforms = []string{"instagram", "tiktok", "youtube", "twitter"}

// Input — данные многошаговой формы создания и редактирования кампании.
type Input struct {
	Name                 string          `json:"name" validate:"required,max=120"`
	Description          string          `json:"description,omitempty" validate:"max=2000"`
	Type                 Type            `json:"type" validate:"required,oneof=paid credit"`
	Budget               decimal.Decimal `json:"budget"`
	CreditsPerInfluencer int             `json:"creditsPerInfluencer,omitempty"`
	Platforms            []string        `json:"platforms" validate:"min=1,dive,oneof=instagram tiktok youtube twitter"`
	StartDate            *time.Time      `json:"startDate,omitempty"`
	EndDate              *time.Time      `json:"endDate,omitempty"`
}

// InputError перечисляет поля формы с ошибками.
type InputError struct {
	Fields map[string]string
}

func (e *InputError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s %s", name, e.Fields[name]))
	}
	return ErrInvalidInput.Error() + ": " + strings.Join(parts, ", ")
}

func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

var validate = validator.New()

// Validate проверяет обязательные поля и условные правила: бюджет для платных
// кампаний, кредиты на инфлюенсера для кредитных, порядок дат.
func (in Input) Validate() error {
	fields := make(map[string]string)

	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			fields[fieldName(fe.Field())] = describe(fe.Tag(), fe.Param())
		}
	}

	switch in.Type {
	case TypePaid:
		if !in.Budget.IsPositive() {
			fields["budget"] = "must be greater than 0 for paid campaigns"
		}
	case TypeCredit:
		if in.CreditsPerInfluencer <= 0 {
			fields["creditsPerInfluencer"] = "must be greater than 0 for credit campaigns"
		}
	}

	if in.StartDate != nil && in.EndDate != nil && !in.EndDate.After(*in.StartDate) {
		fields["endDate"] = "must be after startDate"
	}

	if len(fields) > 0 {
		return &InputError{Fields: fields}
	}
	return nil
}

func fieldName(structField string) string {
	switch structField {
	case "CreditsPerInfluencer":
		return "creditsPerInfluencer"
	case "StartDate":
		return "startDate"
	case "EndDate":
		return "endDate"
	}
	if strings.HasPrefix(structField, "Platforms") {
		return "platforms"
	}
	return strings.ToLower(structField)
}

func describe(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "min":
		return "must have at least " + param + " item"
	case "max":
		return "is too long"
	case "oneof":
		return "must be one of: " + param
	}
	return "is not valid"
}
