// Package sl содержит вспомогательные атрибуты для логгера slog,
// которые используются во всех сервисах дашборда.
package sl

import "log/slog"

// Err возвращает slog.Attr с ключом "error". Для nil-ошибки пишется "<nil>",
// чтобы логирование на ветках без ошибки не паниковало.
//
// Пример:
//
//	log.Error("failed to create checkout session", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// Op возвращает атрибут с именем операции в формате "pkg.Func".
func Op(op string) slog.Attr {
	return slog.String("op", op)
}
