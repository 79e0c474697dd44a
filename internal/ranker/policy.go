package ranker

// Policy holds the tunable scoring and task-generation constants. Only the
// relative order of the structural scores matters: exact < prefix < child <
// semantic.
type Policy struct {
	// NameScoreLimit is the depth score below which a Name task is emitted.
	NameScoreLimit float32
	// ParagraphsScoreLimit is the depth score below which a file gets a
	// Paragraphs task.
	ParagraphsScoreLimit float32
	// ParagraphsBudget is divided by the depth score to pick the number of
	// paragraph groups.
	ParagraphsBudget float32
	// ParagraphsPriorityShift is added to the depth score to give the
	// Paragraphs task's priority.
	ParagraphsPriorityShift float32
	// MaxTasks caps the tasks generated by one query.
	MaxTasks int

	ExactScore    float32
	PrefixScore   float32
	ChildScore    float32
	SemanticBase  float32
	SemanticBlend float32
}

// DefaultPolicy returns the stock constants.
func DefaultPolicy() Policy {
	return Policy{
		NameScoreLimit:          8,
		ParagraphsScoreLimit:    5,
		ParagraphsBudget:        10,
		ParagraphsPriorityShift: 2,
		MaxTasks:                100,
		ExactScore:              0,
		PrefixScore:             1,
		ChildScore:              2,
		SemanticBase:            3,
		SemanticBlend:           -1,
	}
}
