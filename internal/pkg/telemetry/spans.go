package telemetry

// Span and attribute names shared by the pipeline and its workflow.
const (
	SpanRun     = "pipeline.run"
	SpanVintage = "pipeline.vintage"
	SpanLoad    = "pipeline.load"

	AttrRunID   = "housing.run_id"
	AttrVintage = "housing.vintage"
	AttrRows    = "housing.rows"
	AttrSink    = "housing.sink"
)
