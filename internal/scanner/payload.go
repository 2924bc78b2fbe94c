package scanner

// Payload is the kind-specific parsed content of a descriptor.
type Payload interface {
	Kind() Kind
}

// ChartType is a chart's rendering style.
type ChartType string

const (
	ChartBar   ChartType = "bar"
	ChartLine  ChartType = "line"
	ChartPie   ChartType = "pie"
	ChartDonut ChartType = "donut"
)

// DataPoint is one labelled chart value.
type DataPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ChartPayload is the content of a chart block.
type ChartPayload struct {
	Type   ChartType   `json:"type"`
	Points []DataPoint `json:"points"`
}

func (ChartPayload) Kind() Kind { return KindChart }

// Max returns the largest point value, or 0 for an empty chart.
func (p ChartPayload) Max() float64 {
	var m float64
	for _, pt := range p.Points {
		if pt.Value > m {
			m = pt.Value
		}
	}
	return m
}

// Total returns the sum of all point values.
func (p ChartPayload) Total() float64 {
	var t float64
	for _, pt := range p.Points {
		t += pt.Value
	}
	return t
}

// TimelineEntry is one dated line of a timeline. Date is empty when the line
// has no recognizable date prefix.
type TimelineEntry struct {
	Date        string `json:"date"`
	Description string `json:"description"`
}

// TimelinePayload is the content of a timeline block.
type TimelinePayload struct {
	Entries []TimelineEntry `json:"entries"`
}

func (TimelinePayload) Kind() Kind { return KindTimeline }

// ProgressPayload is the content of an inline progress marker.
type ProgressPayload struct {
	Value int    `json:"value"`
	Label string `json:"label,omitempty"`
}

func (ProgressPayload) Kind() Kind { return KindProgress }

// TaskItem is one checklist line.
type TaskItem struct {
	Label string `json:"label"`
	Done  bool   `json:"done"`
}

// TasksPayload is the content of a tasks block.
type TasksPayload struct {
	Items   []TaskItem `json:"items"`
	Percent int        `json:"percent"`
}

func (TasksPayload) Kind() Kind { return KindTasks }

// Completed returns the number of finished items.
func (p TasksPayload) Completed() int {
	n := 0
	for _, item := range p.Items {
		if item.Done {
			n++
		}
	}
	return n
}

// AlertType is an alert's severity.
type AlertType string

const (
	AlertInfo    AlertType = "info"
	AlertWarning AlertType = "warning"
	AlertError   AlertType = "error"
	AlertSuccess AlertType = "success"
	AlertTip     AlertType = "tip"
)

// AlertPayload is the content of an alert block.
type AlertPayload struct {
	Type  AlertType `json:"type"`
	Title string    `json:"title,omitempty"`
	Body  string    `json:"body"`
}

func (AlertPayload) Kind() Kind { return KindAlert }

// StatItem is one tile of a stats block.
type StatItem struct {
	Title  string `json:"title"`
	Value  string `json:"value"`
	Change string `json:"change"`
	Icon   string `json:"icon"`
}

// StatsPayload is the content of a stats block.
type StatsPayload struct {
	Items []StatItem `json:"items"`
}

func (StatsPayload) Kind() Kind { return KindStats }
