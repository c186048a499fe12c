package response

import (
	"fmt"
	"sort"
	"strings"
)

// ExtractInsights derives short observations from the result rows without
// calling a model: row count, per-column means, and outliers. The reported
// mean covers every value in the column, including a lone value. Outlier
// flags use a separate baseline, the mean of the positive values only, so
// sentinel zeros and negatives do not drag it down and mark ordinary values
// as high outliers.
func ExtractInsights(rows []map[string]any) []string {
	if len(rows) == 0 {
		return []string{}
	}

	insights := []string{fmt.Sprintf("The result contains %d rows.", len(rows))}

	columns := numericColumns(rows)
	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		values := columns[name]

		var sum float64
		positives := make([]float64, 0, len(values))
		for _, v := range values {
			sum += v
			if v > 0 {
				positives = append(positives, v)
			}
		}
		mean := sum / float64(len(values))
		insights = append(insights, fmt.Sprintf("The average %s is %.2f.", name, mean))

		if len(positives) < 2 {
			continue
		}
		var posSum float64
		for _, v := range positives {
			posSum += v
		}
		posMean := posSum / float64(len(positives))

		var high, low int
		for _, v := range positives {
			if v > 2*posMean {
				high++
			} else if v < posMean/2 {
				low++
			}
		}
		if high > 0 {
			insights = append(insights, fmt.Sprintf("%d values of %s are more than twice the average.", high, name))
		}
		if low > 0 {
			insights = append(insights, fmt.Sprintf("%d values of %s are less than half the average.", low, name))
		}
	}

	return insights
}

// numericColumns groups the numeric values of each column across all rows.
func numericColumns(rows []map[string]any) map[string][]float64 {
	columns := map[string][]float64{}
	for _, row := range rows {
		for name, value := range row {
			if num, ok := asFloat(value); ok {
				columns[name] = append(columns[name], num)
			}
		}
	}
	return columns
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

// columnNames returns the sorted union of column names across all rows.
func columnNames(rows []map[string]any) []string {
	seen := map[string]bool{}
	for _, row := range rows {
		for name := range row {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// hasColumnContaining reports whether any column name contains the fragment.
func hasColumnContaining(rows []map[string]any, fragment string) bool {
	for _, name := range columnNames(rows) {
		if strings.Contains(strings.ToLower(name), fragment) {
			return true
		}
	}
	return false
}
