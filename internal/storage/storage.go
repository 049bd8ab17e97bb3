// Package storage содержит общие ошибки слоя хранения.
package storage

import "errors"

// ErrNotFound возвращается, когда запись не найдена.
var ErrNotFound = errors.New("not found")
