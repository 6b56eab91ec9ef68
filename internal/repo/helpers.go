package repo

import (
	"time"

	"github.com/google/uuid"
)

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}

// nullInt возвращает nil для нулевого int.
func nullInt(i int) *int {
	if i == 0 {
		return nil
	}
	return &i
}

// deref возвращает значение или пустую строку.
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// seconds переводит интервал в секунды для make_interval(secs => ...).
func seconds(d time.Duration) float64 {
	return d.Seconds()
}

// limitOrDefault ограничивает размер выборки.
func limitOrDefault(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
