package analytics

// DailyCounter accumulates per-day counts for named series
type DailyCounter struct {
	labels []string
	index  map[string]int
	order  []string
	series map[string][]int64
}

// NewDailyCounter prepares zeroed series over labels; series keep the
// given order in the chart.
func NewDailyCounter(labels []string, series ...string) *DailyCounter {
	c := &DailyCounter{
		labels: labels,
		index:  make(map[string]int, len(labels)),
		order:  series,
		series: make(map[string][]int64, len(series)),
	}
	for i, l := range labels {
		c.index[l] = i
	}
	for _, name := range series {
		c.series[name] = make([]int64, len(labels))
	}
	return c
}

// Add counts n on day for series; unknown days or series are ignored
func (c *DailyCounter) Add(series, day string, n int64) {
	values, ok := c.series[series]
	if !ok {
		return
	}
	if i, ok := c.index[day]; ok {
		values[i] += n
	}
}

// Chart returns the counts as line chart data
func (c *DailyCounter) Chart() ChartData {
	data := make([]ChartSeries, 0, len(c.order))
	for _, name := range c.order {
		data = append(data, ChartSeries{Name: name, Values: c.series[name]})
	}
	return ChartData{Type: "line", Labels: c.labels, Data: data}
}
