package analytics

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

// Aggregator runs grouped aggregate queries
type Aggregator struct {
	db *gorm.DB
}

func NewAggregator(db *gorm.DB) *Aggregator {
	return &Aggregator{db: db}
}

// Aggregate returns one map per group, keyed by the bare column names and
// the aggregate aliases.
func (a *Aggregator) Aggregate(ctx context.Context, query AggregateQuery) ([]map[string]interface{}, error) {
	selectParts := append([]string{}, query.GroupBy...)

	aliases := make([]string, 0, len(query.Aggregates))
	for alias := range query.Aggregates {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		selectParts = append(selectParts, fmt.Sprintf("%s AS %s", query.Aggregates[alias], alias))
	}

	db := a.filtered(ctx, query.Table, query.Filters, query.DateRange).
		Select(strings.Join(selectParts, ", "))

	if len(query.GroupBy) > 0 {
		db = db.Group(strings.Join(query.GroupBy, ", "))
	}
	for _, order := range query.OrderBy {
		db = db.Order(order)
	}
	if query.Limit > 0 {
		db = db.Limit(query.Limit)
	}

	var results []map[string]interface{}
	if err := db.Find(&results).Error; err != nil {
		return nil, fmt.Errorf("aggregate query failed: %w", err)
	}
	return results, nil
}

// Count counts the rows matching filters and the optional range
func (a *Aggregator) Count(ctx context.Context, table string, filters map[string]interface{}, dateRange *DateRange) (int64, error) {
	var count int64
	if err := a.filtered(ctx, table, filters, dateRange).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count query failed: %w", err)
	}
	return count, nil
}

func (a *Aggregator) filtered(ctx context.Context, table string, filters map[string]interface{}, dateRange *DateRange) *gorm.DB {
	db := a.db.WithContext(ctx).Table(table)
	for condition, value := range filters {
		if strings.Contains(condition, "?") {
			db = db.Where(condition, value)
		} else {
			db = db.Where(fmt.Sprintf("%s = ?", condition), value)
		}
	}
	if dateRange != nil {
		field := dateRange.Field
		if field == "" {
			field = "created_at"
		}
		db = db.Where(fmt.Sprintf("%s >= ? AND %s < ?", field, field), dateRange.Start, dateRange.End)
	}
	return db
}

// ToInt64 reads a numeric aggregate the way the SQL drivers return it
func ToInt64(value interface{}) int64 {
	switch v := value.(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case []byte:
		var n int64
		fmt.Sscan(string(v), &n)
		return n
	case string:
		var n int64
		fmt.Sscan(v, &n)
		return n
	default:
		return 0
	}
}

// ToString reads a grouped column value as text
func ToString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
