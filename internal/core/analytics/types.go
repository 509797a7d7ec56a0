package analytics

import "time"

// AggregateQuery is a grouped COUNT/SUM style query over one table or join
type AggregateQuery struct {
	Table      string                 // table or JOIN clause
	GroupBy    []string               // GROUP BY columns, also selected
	Aggregates map[string]string      // alias -> expression, e.g. {"total": "COUNT(*)"}
	Filters    map[string]interface{} // column -> value, or "expr ?" -> value
	DateRange  *DateRange
	OrderBy    []string
	Limit      int
}

// DateRange is the half-open interval [Start, End) on Field
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Field string    `json:"-"`
}

// ChartData is the line chart payload the dashboard renders
type ChartData struct {
	Type   string        `json:"type"`
	Labels []string      `json:"labels"`
	Data   []ChartSeries `json:"data"`
}

type ChartSeries struct {
	Name   string  `json:"name"`
	Values []int64 `json:"values"`
}
