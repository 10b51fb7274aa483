package artifact

// Name identifies a stage-scoped artifact within a task directory.
type Name string

// Artifact names, one per pipeline stage output.
const (
	Requirements     Name = "requirements"
	RetrievedContext Name = "retrieved_context"
	Plan             Name = "plan"
	Feedback         Name = "feedback"
	Insights         Name = "insights"
	CurationRecord   Name = "curation"
)

// All lists every artifact name in pipeline order.
var All = []Name{Requirements, RetrievedContext, Plan, Feedback, Insights, CurationRecord}

// requiredFields maps each artifact to the top-level JSON fields it must
// contain to be considered intact. An artifact missing any of these fields
// fails integrity verification.
var requiredFields = map[Name][]string{
	Requirements:     {"requirements"},
	RetrievedContext: {"context"},
	Plan:             {"artifact", "reasoning_trace", "bullets_referenced"},
	Feedback:         {"score", "notes"},
	Insights:         {"insights", "bullet_tags"},
	CurationRecord:   {"task_id", "operations"},
}

// RequiredFields returns the top-level fields an artifact must contain.
// Unknown names have no requirements beyond being well-formed JSON.
func RequiredFields(name Name) []string {
	return requiredFields[name]
}
