// Package sl содержит вспомогательные функции для работы с логгером slog.
package sl

import "log/slog"

// Err возвращает slog.Attr с ключом "error" и текстом ошибки, чтобы
// ошибки во всех логах сервиса выглядели единообразно.
func Err(err error) slog.Attr {
	return slog.String("error", err.Error())
}
