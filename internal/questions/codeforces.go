package questions

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spigell/interviewd/internal/interview"
	"go.uber.org/zap"
)

const (
	codeforcesURL        = "https://codeforces.com/api"
	codeforcesProblemURL = "https://codeforces.com/contest/%d/problem/%s"
	problemsetTTL        = time.Hour
)

// Curated problems are offered first when they match the wanted difficulty.
var codeforcesCurated = []string{
	"4A", "71A", "231A", "282A", "339A", "266A", "112A", "158A", "236A", "263A",
	"1A", "50A", "118A", "122A", "160A", "148A", "116A", "69A", "144A", "467A",
	"580C", "492B", "279B", "276C", "368B", "433B", "472A", "451B",
}

// codeforcesTags maps interview topics onto problemset tags. Other topics query the whole problemset.
var codeforcesTags = map[string]string{
	"math":                "math",
	"greedy":              "greedy",
	"dp":                  "dp",
	"dynamic-programming": "dp",
	"graph":               "graphs",
	"graphs":              "graphs",
	"tree":                "trees",
	"trees":               "trees",
	"string":              "strings",
	"strings":             "strings",
	"sorting":             "sortings",
	"binary-search":       "binary search",
	"number-theory":       "number theory",
	"implementation":      "implementation",
}

// CodeforcesTag returns the problemset tag for a topic, or "" when the topic has none.
func CodeforcesTag(topic string) string {
	return codeforcesTags[strings.ToLower(strings.TrimSpace(topic))]
}

// CodeforcesProblem is one item of problemset.problems.
type CodeforcesProblem struct {
	ContestID int      `json:"contestId"`
	Index     string   `json:"index"`
	Name      string   `json:"name"`
	Rating    int      `json:"rating"`
	Tags      []string `json:"tags"`
}

func (p CodeforcesProblem) key() string {
	return fmt.Sprintf("%d%s", p.ContestID, p.Index)
}

// RatingDifficulty maps a Codeforces rating onto the interview scale.
func RatingDifficulty(rating int) interview.Difficulty {
	switch {
	case rating <= 900:
		return interview.DifficultyEasy
	case rating <= 1400:
		return interview.DifficultyMedium
	default:
		return interview.DifficultyHard
	}
}

// Codeforces selects problems from the public problemset API. The API has no statements, so
// the statement is a summary pointing at the problem page.
type Codeforces struct {
	httpCore
	APIURL string
	pick   func(n int) int
	now    func() time.Time

	mu        sync.Mutex
	cached    []CodeforcesProblem
	cachedTag string
	fetchedAt time.Time
}

func NewCodeforces(logger *zap.Logger, timeout time.Duration) *Codeforces {
	return &Codeforces{
		httpCore: newHTTPCore(logger, timeout),
		APIURL:   codeforcesURL,
		pick:     rand.IntN,
		now:      time.Now,
	}
}

func (c *Codeforces) Name() string { return SourceCodeforces }

type codeforcesResponse struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
	Result  struct {
		Problems []any `json:"problems"`
	} `json:"result"`
}

func (c *Codeforces) Supply(ctx context.Context, req Request) (*Problem, error) {
	problems, err := c.problemset(ctx, CodeforcesTag(req.Topic))
	if err != nil {
		return nil, err
	}

	var curated, rest []CodeforcesProblem
	for _, p := range problems {
		if p.Rating == 0 || RatingDifficulty(p.Rating) != req.Difficulty || req.excluded(codeforcesID(p)) {
			continue
		}
		if contains(codeforcesCurated, p.key()) {
			curated = append(curated, p)
		} else {
			rest = append(rest, p)
		}
	}

	candidates := curated
	if len(candidates) == 0 {
		candidates = rest
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("codeforces: no %s problems available", req.Difficulty)
	}

	return toProblem(candidates[c.pick(len(candidates))]), nil
}

func (c *Codeforces) problemset(ctx context.Context, tag string) ([]CodeforcesProblem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil && c.cachedTag == tag && c.now().Sub(c.fetchedAt) < problemsetTTL {
		return c.cached, nil
	}

	q := url.Values{}
	if tag != "" {
		q.Set("tags", tag)
	}

	var resp codeforcesResponse
	if err := c.getJSON(ctx, c.APIURL+"/problemset.problems", q, &resp); err != nil {
		return nil, fmt.Errorf("codeforces problemset: %w", err)
	}
	if resp.Status != "OK" {
		return nil, fmt.Errorf("codeforces problemset: status %s: %s", resp.Status, resp.Comment)
	}

	problems := make([]CodeforcesProblem, 0, len(resp.Result.Problems))
	for _, item := range resp.Result.Problems {
		var p CodeforcesProblem
		if err := decode(item, &p); err != nil {
			c.logger.Debug("skipping undecodable codeforces problem", zap.Error(err))
			continue
		}
		problems = append(problems, p)
	}

	c.cached, c.cachedTag, c.fetchedAt = problems, tag, c.now()
	c.logger.Debug("codeforces problemset fetched", zap.Int("count", len(problems)), zap.String("tag", tag))
	return problems, nil
}

func decode(item any, target *CodeforcesProblem) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(item)
}

func toProblem(p CodeforcesProblem) *Problem {
	link := fmt.Sprintf(codeforcesProblemURL, p.ContestID, p.Index)

	topic := ""
	if len(p.Tags) > 0 {
		topic = p.Tags[0]
	}

	statement := fmt.Sprintf("Codeforces problem %s \"%s\" (rating %d).", p.key(), p.Name, p.Rating)
	if len(p.Tags) > 0 {
		statement += fmt.Sprintf("\nTopics: %s.", strings.Join(p.Tags, ", "))
	}
	statement += fmt.Sprintf("\nFull statement: %s\nWalk through your approach, its complexity and the edge cases before writing code.", link)

	return &Problem{
		ID:         codeforcesID(p),
		Title:      p.Name,
		Source:     SourceCodeforces,
		Difficulty: RatingDifficulty(p.Rating),
		Statement:  statement,
		Topic:      topic,
		Tags:       p.Tags,
		URL:        link,
	}
}

func codeforcesID(p CodeforcesProblem) string {
	return SourceCodeforces + ":" + p.key()
}
