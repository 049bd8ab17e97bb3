// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON-ответов API дашборда.
package response

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator"
)

// Response описывает стандартную структуру JSON-ответа сервера.
// Поле Success — признак успешного выполнения.
// Поле Error — текст ошибки (при неуспехе).
// Поле Data — данные ответа (при успехе).
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse — структура ошибки для Swagger-документации.
type ErrorResponse struct {
	Success bool   `json:"success" example:"false"`
	Error   string `json:"error" example:"Missing required fields"`
}

// OK возвращает успешный Response с переданными данными.
func OK(data any) Response {
	return Response{
		Success: true,
		Data:    data,
	}
}

// Error возвращает ErrorResponse с переданным сообщением.
func Error(msg string) ErrorResponse {
	return ErrorResponse{
		Success: false,
		Error:   msg,
	}
}

// ValidationError формирует ErrorResponse на основе ошибок валидации.
// Каждое нарушение превращается в человекочитаемый текст, объединённый через запятую.
func ValidationError(errs validator.ValidationErrors) ErrorResponse {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "oneof":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be one of [%s]", err.Field(), err.Param()))
		case "email", "basic_email":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be a valid email", err.Field()))
		case "gt", "gte":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be greater than %s", err.Field(), err.Param()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not valid", err.Field()))
		}
	}
	return ErrorResponse{
		Success: false,
		Error:   strings.Join(errsMsgs, ", "),
	}
}
