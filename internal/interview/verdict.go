package interview

// Security decisions.
const (
	DecisionAllow         = "allow"
	DecisionBlockPattern  = "block_pattern"
	DecisionBlockSemantic = "block_semantic"
)

// SecurityVerdict is the result of screening a message for manipulation attempts.
type SecurityVerdict struct {
	Approved        bool     `json:"approved"`
	PatternRisk     float64  `json:"pattern_risk"`
	SemanticRisk    float64  `json:"semantic_risk"`
	SemanticChecked bool     `json:"semantic_checked"`
	Decision        string   `json:"decision"`
	MatchedPatterns []string `json:"matched_patterns,omitempty"`
	Reason          string   `json:"reason,omitempty"`
}

// Content reasons.
const (
	ContentOnTopic       = "on_topic"
	ContentInappropriate = "inappropriate"
	ContentOffTopic      = "off_topic"
)

// ContentVerdict is the result of the professionalism and relevance check.
type ContentVerdict struct {
	Approved     bool   `json:"approved"`
	Reason       string `json:"reason"`
	Redirect     string `json:"redirect,omitempty"`
	Detail       string `json:"detail,omitempty"`
	PatternScore int    `json:"pattern_score"`
}

// Criteria scored by the evaluator, each in [1,5].
type Scores struct {
	Technical       int `json:"technical"`
	Communication   int `json:"communication"`
	ProblemApproach int `json:"problem_approach"`
	Collaboration   int `json:"collaboration"`
}

// Weights applied to the criteria. They sum to 1.0.
type Weights struct {
	Technical       float64 `json:"technical" mapstructure:"technical"`
	Communication   float64 `json:"communication" mapstructure:"communication"`
	ProblemApproach float64 `json:"problem_approach" mapstructure:"problem-approach"`
	Collaboration   float64 `json:"collaboration" mapstructure:"collaboration"`
}

// DefaultWeights are 0.40, 0.25, 0.20 and 0.15.
func DefaultWeights() Weights {
	return Weights{Technical: 0.40, Communication: 0.25, ProblemApproach: 0.20, Collaboration: 0.15}
}

// Sum of all weights.
func (w Weights) Sum() float64 {
	return w.Technical + w.Communication + w.ProblemApproach + w.Collaboration
}

// Ratings.
const (
	RatingExcellent        = "excellent"
	RatingGood             = "good"
	RatingSatisfactory     = "satisfactory"
	RatingNeedsImprovement = "needs_improvement"
	RatingInadequate       = "inadequate"
)

// Recommendations.
const (
	RecommendStrongHire = "strong_hire"
	RecommendHire       = "hire"
	RecommendBorderline = "borderline"
	RecommendNoHire     = "no_hire"
)

// ScoreCard is the final structured assessment of a session.
type ScoreCard struct {
	Scores         Scores   `json:"scores"`
	Weights        Weights  `json:"weights"`
	Overall        float64  `json:"overall"`
	Rating         string   `json:"rating"`
	Recommendation string   `json:"recommendation"`
	Decision       string   `json:"decision"`
	NextSteps      []string `json:"next_steps"`
	Strengths      []string `json:"strengths"`
	Gaps           []string `json:"gaps"`
	Summary        string   `json:"summary"`
	Issues         []string `json:"issues,omitempty"`
}
