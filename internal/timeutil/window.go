// Package timeutil содержит расчёт границ окна агрегации UAW.
package timeutil

import "time"

// WindowHours — ширина окна агрегации: 7 суток почасовых записей.
const WindowHours = 168

// LatestCompletedHourStart возвращает начало последнего полностью
// завершившегося часа в UTC. Частично прошедший час в окно не попадает.
func LatestCompletedHourStart(now time.Time) time.Time {
	return now.UTC().Truncate(time.Hour).Add(-time.Hour)
}

// WindowStart возвращает начало окна агрегации: на 167 часов раньше
// LatestCompletedHourStart, чтобы включительный диапазон покрывал
// ровно 168 часовых слотов.
func WindowStart(now time.Time) time.Time {
	return LatestCompletedHourStart(now).Add(-(WindowHours - 1) * time.Hour)
}
