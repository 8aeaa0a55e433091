package api

// RunSummary is one row of GET /api/runs.
type RunSummary struct {
	RunName       string         `json:"run_name"`
	RunID         string         `json:"run_id"`
	DagName       string         `json:"dag_name"`
	CreatedAtUTC  string         `json:"created_at_utc"`
	StepCount     int            `json:"step_count"`
	StatusSummary map[string]int `json:"status_summary"`
}

// StepSummary is one step's entry within RunDetails.
type StepSummary struct {
	StepName         string   `json:"step_name"`
	TableName        string   `json:"table_name"`
	Status           string   `json:"status"`
	DurationMS       *float64 `json:"duration_ms"`
	InputLines       *int     `json:"input_lines"`
	OutputLines      *int     `json:"output_lines"`
	ThroughputInLPS  *float64 `json:"throughput_in_lps"`
	ThroughputOutLPS *float64 `json:"throughput_out_lps"`
	WhenName         *string  `json:"when_name"`
	ConditionBool    *bool    `json:"condition_bool"`
	IsBranch         bool     `json:"is_branch"`
	DisabledSelf     bool     `json:"disabled_self"`
	DisabledDeps     []string `json:"disabled_deps"`
	Deps             []string `json:"deps"`
	OutputText       string   `json:"output_text"`
}

// RunDetails is the payload of GET /api/runs/{run_name}.
type RunDetails struct {
	RunName      string        `json:"run_name"`
	RunID        string        `json:"run_id"`
	DagName      string        `json:"dag_name"`
	CreatedAtUTC string        `json:"created_at_utc"`
	StepCount    int           `json:"step_count"`
	Steps        []StepSummary `json:"steps"`
}

// StepRowRecord is one row of a step's output within StepRowsPage.
type StepRowRecord struct {
	RowID   int64          `json:"row_id"`
	Payload map[string]any `json:"payload"`
}

// StepRowsPage is the payload of GET /api/runs/{run_name}/steps/{step_name}/rows.
type StepRowsPage struct {
	RunName   string          `json:"run_name"`
	StepName  string          `json:"step_name"`
	TotalRows int             `json:"total_rows"`
	Offset    int             `json:"offset"`
	Limit     int             `json:"limit"`
	Rows      []StepRowRecord `json:"rows"`
}

// GraphNode is one node of RunGraph.
type GraphNode struct {
	StepName      string   `json:"step_name"`
	Status        string   `json:"status"`
	Deps          []string `json:"deps"`
	IsBranch      bool     `json:"is_branch"`
	WhenName      *string  `json:"when_name"`
	ConditionBool *bool    `json:"condition_bool"`
	DisabledSelf  bool     `json:"disabled_self"`
	DisabledDeps  []string `json:"disabled_deps"`
	X             int      `json:"x"`
	Y             int      `json:"y"`
}

// GraphEdge is one dependency edge of RunGraph.
type GraphEdge struct {
	Source        string `json:"source"`
	Target        string `json:"target"`
	IsConditional bool   `json:"is_conditional"`
	ConditionBool *bool  `json:"condition_bool"`
	Disabled      bool   `json:"disabled"`
}

// RunGraph is the payload of GET /api/runs/{run_name}/graph.
type RunGraph struct {
	RunName      string      `json:"run_name"`
	RunID        string      `json:"run_id"`
	DagName      string      `json:"dag_name"`
	CreatedAtUTC string      `json:"created_at_utc"`
	Nodes        []GraphNode `json:"nodes"`
	Edges        []GraphEdge `json:"edges"`
	Width        int         `json:"width"`
	Height       int         `json:"height"`
}
