package questions

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/spigell/interviewd/internal/interview"
	"go.uber.org/zap"
)

const (
	leetCodeURL        = "https://leetcode.com/graphql"
	leetCodeProblemURL = "https://leetcode.com/problems/"
)

const questionQuery = `query questionData($titleSlug: String!) {
  question(titleSlug: $titleSlug) {
    questionId
    title
    titleSlug
    content
    difficulty
    topicTags { name slug }
    hints
  }
}`

var leetCodeSlugs = map[interview.Difficulty][]string{
	interview.DifficultyEasy: {
		"two-sum", "remove-duplicates-from-sorted-array", "best-time-to-buy-and-sell-stock",
		"valid-palindrome", "single-number", "majority-element", "contains-duplicate",
		"valid-anagram", "missing-number", "move-zeroes",
	},
	interview.DifficultyMedium: {
		"longest-substring-without-repeating-characters", "3sum", "search-in-rotated-sorted-array",
		"group-anagrams", "merge-intervals", "sort-colors", "binary-tree-level-order-traversal",
		"word-break", "number-of-islands", "product-of-array-except-self",
	},
	interview.DifficultyHard: {
		"median-of-two-sorted-arrays", "merge-k-sorted-lists", "reverse-nodes-in-k-group",
		"trapping-rain-water", "minimum-window-substring", "largest-rectangle-in-histogram",
		"binary-tree-maximum-path-sum", "find-median-from-data-stream",
	},
}

var leetCodeTopics = map[string][]string{
	"array":               {"two-sum", "remove-duplicates-from-sorted-array", "merge-intervals", "product-of-array-except-self"},
	"string":              {"valid-palindrome", "valid-anagram", "group-anagrams", "minimum-window-substring"},
	"tree":                {"binary-tree-level-order-traversal", "binary-tree-maximum-path-sum"},
	"dynamic-programming": {"word-break", "best-time-to-buy-and-sell-stock"},
}

// LeetCode fetches curated problems through the public GraphQL endpoint.
type LeetCode struct {
	httpCore
	APIURL string
	pick   func(n int) int
}

func NewLeetCode(logger *zap.Logger, timeout time.Duration) *LeetCode {
	return &LeetCode{
		httpCore: newHTTPCore(logger, timeout),
		APIURL:   leetCodeURL,
		pick:     rand.IntN,
	}
}

func (l *LeetCode) Name() string { return SourceLeetCode }

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type leetCodeResponse struct {
	Data struct {
		Question *struct {
			QuestionID string `json:"questionId"`
			Title      string `json:"title"`
			TitleSlug  string `json:"titleSlug"`
			Content    string `json:"content"`
			Difficulty string `json:"difficulty"`
			TopicTags  []struct {
				Name string `json:"name"`
				Slug string `json:"slug"`
			} `json:"topicTags"`
			Hints []string `json:"hints"`
		} `json:"question"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (l *LeetCode) Supply(ctx context.Context, req Request) (*Problem, error) {
	slug, err := l.chooseSlug(req)
	if err != nil {
		return nil, err
	}
	return l.Fetch(ctx, slug, req.Difficulty)
}

func (l *LeetCode) chooseSlug(req Request) (string, error) {
	slugs := leetCodeSlugs[req.Difficulty]
	if len(slugs) == 0 {
		return "", fmt.Errorf("leetcode: no problems for difficulty %q", req.Difficulty)
	}

	var candidates []string
	if topic := strings.ToLower(strings.TrimSpace(req.Topic)); topic != "" {
		for _, slug := range leetCodeTopics[topic] {
			if contains(slugs, slug) && !req.excluded(leetCodeID(slug)) {
				candidates = append(candidates, slug)
			}
		}
	}
	if len(candidates) == 0 {
		for _, slug := range slugs {
			if !req.excluded(leetCodeID(slug)) {
				candidates = append(candidates, slug)
			}
		}
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("leetcode: all %s problems already used", req.Difficulty)
	}

	return candidates[l.pick(len(candidates))], nil
}

// Fetch loads one problem by slug.
func (l *LeetCode) Fetch(ctx context.Context, slug string, difficulty interview.Difficulty) (*Problem, error) {
	var resp leetCodeResponse
	err := l.postJSON(ctx, l.APIURL, graphQLRequest{
		Query:     questionQuery,
		Variables: map[string]any{"titleSlug": slug},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("leetcode %s: %w", slug, err)
	}

	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("leetcode %s: %s", slug, resp.Errors[0].Message)
	}

	q := resp.Data.Question
	if q == nil || strings.TrimSpace(q.Content) == "" {
		return nil, fmt.Errorf("leetcode %s: problem not available", slug)
	}

	if d, ok := interview.ParseDifficulty(q.Difficulty); ok {
		difficulty = d
	}

	p := &Problem{
		ID:         leetCodeID(q.TitleSlug),
		Title:      q.Title,
		Source:     SourceLeetCode,
		Difficulty: difficulty,
		Statement:  cleanHTML(q.Content),
		URL:        leetCodeProblemURL + q.TitleSlug + "/",
	}
	for _, tag := range q.TopicTags {
		p.Tags = append(p.Tags, tag.Slug)
	}
	if len(p.Tags) > 0 {
		p.Topic = p.Tags[0]
	}
	for _, h := range q.Hints {
		if h = cleanHTML(h); h != "" {
			p.Hints = append(p.Hints, h)
		}
	}

	l.logger.Debug("leetcode problem fetched", zap.String("id", p.ID), zap.Int("hints", len(p.Hints)))
	return p, nil
}

func leetCodeID(slug string) string {
	return SourceLeetCode + ":" + slug
}

func contains(items []string, item string) bool {
	for _, i := range items {
		if i == item {
			return true
		}
	}
	return false
}
