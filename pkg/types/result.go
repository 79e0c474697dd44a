package types

// Source identifies which stage of the ranker produced a result.
type Source string

const (
	SourceExactPath     Source = "exact_path"
	SourceInDir         Source = "in_dir"
	SourceStartLikePath Source = "start_like_path"
	SourceSemantic      Source = "semantic"
)

// RankResult is one ranked entry returned for a query. Lower scores rank first.
type RankResult struct {
	Path   string  `json:"path"`
	Source Source  `json:"source"`
	Score  float32 `json:"score"`
}

// Neighbor is a vector cache hit translated back to a path.
type Neighbor struct {
	Distance float32
	Path     string
}
