package memory

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rcliao/layered-memory/internal/embedding"
	"github.com/rcliao/layered-memory/internal/model"
	"github.com/rcliao/layered-memory/internal/observe"
	"github.com/rcliao/layered-memory/internal/store"
)

// Options configures a Substrate.
type Options struct {
	// Reflect revises instructions from feedback. Optional.
	Reflect ReflectFunc
	// UpdateAttempts bounds policy CAS retries. Defaults to DefaultUpdateAttempts.
	UpdateAttempts int
	// Metric ranks facts and episodes. Empty means cosine.
	Metric   embedding.Metric
	Observer *observe.Observer
}

// Substrate bundles the memory layers that share one store.
type Substrate struct {
	Store      store.Store
	Procedural *Procedural
	Episodes   *Episodic
	Knowledge  *Semantic

	metric embedding.Metric
	obs    *observe.Observer
}

// New builds a Substrate over s.
func New(s store.Store, opts Options) *Substrate {
	if opts.Observer == nil {
		opts.Observer = observe.Nop()
	}
	proc := NewProcedural(s, opts.Reflect)
	proc.obs = opts.Observer
	if opts.UpdateAttempts > 0 {
		proc.attempts = opts.UpdateAttempts
	}
	return &Substrate{
		Store:      s,
		Procedural: proc,
		Episodes:   NewEpisodic(s).WithMetric(opts.Metric),
		Knowledge:  NewKnowledge(s).WithMetric(opts.Metric),
		metric:     opts.Metric,
		obs:        opts.Observer,
	}
}

func (s *Substrate) Profile(userID string) (*Profile, error) {
	return NewProfile(s.Store, userID)
}

func (s *Substrate) Preferences(userID string) (*Profile, error) {
	return NewPreferences(s.Store, userID)
}

func (s *Substrate) Facts(userID string) (*Semantic, error) {
	f, err := NewFacts(s.Store, userID)
	if err != nil {
		return nil, err
	}
	return f.WithMetric(s.metric), nil
}

// DefaultInstructions is the version 1 policy written by Seed.
const DefaultInstructions = `You are an Investment Advisory Assistant. Follow these guidelines:

1. Be objective and data-driven in all interactions
2. Always consider the user's risk tolerance and investment profile when giving advice
3. Provide evidence-based investment information
4. Present balanced perspectives without being overly bullish or bearish
5. Refer users to licensed financial advisors for specific investment decisions

When responding:
- Use the user's name if known
- Reference their investment goals and constraints when relevant
- Build on previous conversations when possible
- Keep responses focused and actionable
- Note that past performance doesn't guarantee future results`

// SampleEpisodes are written by Seed.
var SampleEpisodes = []model.Episode{
	{
		Key:       "episode_0",
		Situation: "User asked about diversifying a concentrated portfolio",
		Input:     "I have most of my wealth in my company's stock. How should I think about diversifying?",
		Output:    "Concentrated positions can carry significant risk. I'd recommend considering a systematic diversification plan: 1) Assess your overall financial picture and risk tolerance. 2) Explore tax-efficient strategies like exchange funds or charitable remainder trusts. 3) Consider gradually rebalancing into a diversified mix of asset classes including broad market equities, fixed income, and alternatives. 4) Work with a financial advisor to create a timeline that balances tax implications with risk reduction. Would you like to explore any of these strategies in more detail?",
		Feedback:  "User found this helpful and appreciated the structured approach with tax considerations",
	},
	{
		Key:       "episode_1",
		Situation: "User concerned about market downturn impact on retirement",
		Input:     "I'm worried about a market crash right before I retire. What should I do?",
		Output:    "Sequence-of-returns risk is a legitimate concern for pre-retirees. Here are some strategies to consider: 1) Gradually shift to a more conservative asset allocation as you approach retirement - a common approach is the 'glide path' strategy. 2) Build a cash reserve covering 1-2 years of expenses to avoid selling during downturns. 3) Consider a bucket strategy that segments your portfolio by time horizon. 4) Diversify across asset classes that may respond differently to market stress. Which of these approaches would you like to discuss further?",
		Feedback:  "User appreciated the practical steps and felt more confident about their retirement planning",
	},
}

// SeedResult reports what Seed wrote.
type SeedResult struct {
	Policy   bool `json:"policy"`
	Episodes int  `json:"episodes"`
}

// Seed writes the default policy and sample episodes where absent. Existing
// records are never overwritten, so Seed is safe to run on every start.
func (s *Substrate) Seed(ctx context.Context) (SeedResult, error) {
	var res SeedResult
	wrote, err := s.Procedural.Seed(ctx, model.Policy{Instructions: DefaultInstructions, Version: 1})
	if err != nil {
		return res, err
	}
	res.Policy = wrote

	for _, ep := range SampleEpisodes {
		_, err := s.Store.PutIf(ctx, s.Episodes.Namespace(), ep.Key, ep.ToValue(), 0)
		if errors.Is(err, store.ErrRevisionConflict) {
			continue
		}
		if err != nil {
			return res, fmt.Errorf("seed episode %s: %w", ep.Key, err)
		}
		res.Episodes++
	}
	s.obs.Log().Info().Str("policy", strconv.FormatBool(res.Policy)).Int("episodes", res.Episodes).Msg("seeded")
	return res, nil
}
