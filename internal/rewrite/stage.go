package rewrite

// Stage is how far a rewrite progressed.
//
//	NoOp -> Extracted -> Partitioned -> Built -> Merged
//
// NoOp and Merged are terminal and are the only stages a Result reports.
// The intermediate stages show up in debug logs.
type Stage int

const (
	// StageNoOp means the request was returned unchanged.
	StageNoOp Stage = iota
	// StageExtracted means a free-text clause and its query string were found.
	StageExtracted
	// StagePartitioned means the query was split into expandable phrases and remainder.
	StagePartitioned
	// StageBuilt means at least one replacement clause was built.
	StageBuilt
	// StageMerged means the request's query was replaced.
	StageMerged
)

var stageNames = [...]string{
	StageNoOp:        "noop",
	StageExtracted:   "extracted",
	StagePartitioned: "partitioned",
	StageBuilt:       "built",
	StageMerged:      "merged",
}

// String returns the lower-case stage name.
func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// Reason explains why a rewrite ended as a NoOp.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonUnsupported      Reason = "synonyms_unsupported"
	ReasonNoRequest        Reason = "no_request"
	ReasonNoQuery          Reason = "no_query"
	ReasonNoTextClause     Reason = "no_text_clause"
	ReasonEmptyQuery       Reason = "empty_query"
	ReasonNothingToRewrite Reason = "nothing_to_rewrite"
)
