package models

// TaskFilter represents filter parameters for listing analysis tasks
type TaskFilter struct {
	Analyzer string `form:"analyzer"`
	Status   string `form:"status"`
	Limit    int    `form:"limit"`
}

// AggregateFilter selects the rows of one published collection
type AggregateFilter struct {
	Analyzer string `form:"-"`
	Campaign string `form:"campaign"`
	Limit    int    `form:"limit"`
}

// FeatureFilter selects the point features of one layer
type FeatureFilter struct {
	Layer    string `form:"-"`
	Campaign string `form:"campaign"`
	Limit    int    `form:"limit"`
}
