// Package uaw строит почасовые временные ряды уникальных активных кошельков.
package uaw

import (
	"sort"

	"github.com/mmeshcher/xrplradar-system/internal/model"
	"github.com/mmeshcher/xrplradar-system/internal/timeutil"
)

// BuildSeries группирует почасовые записи по имени сервиса и строит для
// каждого сервиса ряд ровно из timeutil.WindowHours значений UAW, от старых
// к новым. Недостающие часы дополняются нулями слева, избыток обрезается
// до самых свежих значений. Порядок сервисов в результате не определён.
//
// Список сервисов берётся из самих записей: сервис без записей в окне
// в результат не попадает.
func BuildSeries(records []model.UawHourlyRecord) []model.ServiceUawSeries {
	grouped := make(map[string][]model.UawHourlyRecord)
	for _, rec := range records {
		grouped[rec.ServiceName] = append(grouped[rec.ServiceName], rec)
	}

	result := make([]model.ServiceUawSeries, 0, len(grouped))
	for name, recs := range grouped {
		sort.Slice(recs, func(i, j int) bool {
			return recs[i].CollectionStartTime.Before(recs[j].CollectionStartTime)
		})

		counts := make([]int, 0, len(recs))
		for _, rec := range recs {
			counts = append(counts, rec.UawCount)
		}

		if len(counts) > timeutil.WindowHours {
			counts = counts[len(counts)-timeutil.WindowHours:]
		}

		values := make([]int, timeutil.WindowHours)
		copy(values[timeutil.WindowHours-len(counts):], counts)

		result = append(result, model.ServiceUawSeries{
			ServiceName: name,
			Values:      values,
		})
	}

	return result
}
