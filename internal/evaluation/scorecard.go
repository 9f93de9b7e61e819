package evaluation

import (
	"fmt"
	"math"

	"github.com/spigell/interviewd/internal/interview"
)

// Card builds the deterministic part of a score card from validated scores.
func Card(scores interview.Scores, weights interview.Weights) interview.ScoreCard {
	overall := Overall(scores, weights)
	rating := Rating(overall)
	recommendation, decision := Recommendation(overall)

	return interview.ScoreCard{
		Scores:         scores,
		Weights:        weights,
		Overall:        overall,
		Rating:         rating,
		Recommendation: recommendation,
		Decision:       decision,
		NextSteps:      NextSteps(overall),
		Summary:        assessmentText(rating, overall),
	}
}

// Overall is the weighted sum rounded to one decimal.
func Overall(s interview.Scores, w interview.Weights) float64 {
	sum := w.Technical*float64(s.Technical) +
		w.Communication*float64(s.Communication) +
		w.ProblemApproach*float64(s.ProblemApproach) +
		w.Collaboration*float64(s.Collaboration)
	return math.Round(sum*10+1e-9) / 10
}

func Rating(overall float64) string {
	switch {
	case overall >= 4.5:
		return interview.RatingExcellent
	case overall >= 3.5:
		return interview.RatingGood
	case overall >= 2.5:
		return interview.RatingSatisfactory
	case overall >= 1.5:
		return interview.RatingNeedsImprovement
	default:
		return interview.RatingInadequate
	}
}

// Recommendation returns the hiring recommendation code and its wording.
func Recommendation(overall float64) (string, string) {
	switch {
	case overall >= 4.0:
		return interview.RecommendStrongHire, "Strong hire - Recommend proceeding to next round"
	case overall >= 3.0:
		return interview.RecommendHire, "Hire - Candidate meets requirements with some development potential"
	case overall >= 2.0:
		return interview.RecommendBorderline, "Borderline - Consider additional interviews or specific role fit"
	default:
		return interview.RecommendNoHire, "No hire - Candidate needs significant development"
	}
}

func NextSteps(overall float64) []string {
	switch {
	case overall >= 3.5:
		return []string{
			"Schedule technical deep-dive interview",
			"Discuss team fit and role expectations",
			"Check references",
		}
	case overall >= 2.5:
		return []string{
			"Consider take-home technical assessment",
			"Schedule behavioral interview",
			"Evaluate for junior or alternative roles",
		}
	default:
		return []string{
			"Provide constructive feedback",
			"Suggest areas for skill development",
			"Keep candidate in pipeline for future opportunities",
		}
	}
}

func assessmentText(rating string, overall float64) string {
	switch rating {
	case interview.RatingExcellent:
		return fmt.Sprintf("The candidate demonstrated exceptional performance with an overall score of %.1f/5 and showed strong capabilities across all areas.", overall)
	case interview.RatingGood:
		return fmt.Sprintf("The candidate performed well with an overall score of %.1f/5, showing solid technical skills and good communication with minor areas for development.", overall)
	case interview.RatingSatisfactory:
		return fmt.Sprintf("The candidate showed adequate performance with an overall score of %.1f/5. Basic expectations were met, with several areas for continued development.", overall)
	case interview.RatingNeedsImprovement:
		return fmt.Sprintf("The candidate's performance was below expectations with an overall score of %.1f/5. Significant improvement is needed in key areas.", overall)
	default:
		return fmt.Sprintf("The candidate's performance was significantly below expectations with an overall score of %.1f/5.", overall)
	}
}
