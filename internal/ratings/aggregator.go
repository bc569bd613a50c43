package ratings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hackgods/medifit/internal/events"
)

const (
	ratingPrecision = 2
	publishTimeout  = 5 * time.Second
)

// Aggregator folds newly rated surveys into each doctor's running mean.
type Aggregator struct {
	repo      Repository
	publisher events.RatingPublisher
	options
}

type RunResult struct {
	Surveys int // surveys folded into an aggregate
	Doctors int // doctor groups committed
	Failed  int // doctor groups rolled back
	Stale   int // doctor groups another run had already folded
}

func NewAggregator(repo Repository, publisher events.RatingPublisher, opts ...Option) *Aggregator {
	return &Aggregator{repo: repo, publisher: publisher, options: buildOptions(opts)}
}

// Run processes every unprocessed rated survey. Each doctor's group is
// committed in its own transaction; a failing group is logged and does not
// stop the others. The RatingEvent of a group is published after its commit.
func (a *Aggregator) Run(ctx context.Context) (RunResult, error) {
	var res RunResult
	start := a.now()

	surveys, err := a.repo.ListUnprocessedRated(ctx)
	if err != nil {
		return res, fmt.Errorf("list unprocessed surveys: %w", err)
	}

	a.log.Info("found surveys to process", zap.Int("count", len(surveys)))

	for _, group := range groupByDoctor(surveys) {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		rating, err := a.processGroup(ctx, group)
		if errors.Is(err, ErrBatchProcessed) {
			res.Stale++
			a.log.Warn("surveys already folded by another run, skipping doctor",
				zap.Int64("doctor_id", group.doctorID),
				zap.Int("surveys", len(group.surveys)),
			)
			continue
		}
		if err != nil {
			res.Failed++
			a.log.Error("failed to aggregate doctor ratings",
				zap.Int64("doctor_id", group.doctorID),
				zap.Int("surveys", len(group.surveys)),
				zap.Error(err),
			)
			continue
		}

		res.Doctors++
		res.Surveys += len(group.surveys)
		a.observer.SurveysProcessed(len(group.surveys))

		a.publish(ctx, events.RatingEvent{DoctorID: rating.DoctorID, Rating: rating.Average})
	}

	a.observer.AggregationFinished(a.now().Sub(start), res.Failed)
	a.log.Info("aggregation run complete",
		zap.Int("doctors", res.Doctors),
		zap.Int("surveys", res.Surveys),
		zap.Int("failed", res.Failed),
		zap.Int("stale", res.Stale),
	)
	return res, nil
}

type doctorGroup struct {
	doctorID int64
	surveys  []Survey
}

func groupByDoctor(surveys []Survey) []doctorGroup {
	idx := make(map[int64]int)
	var groups []doctorGroup

	for _, s := range surveys {
		if s.Rating == nil {
			continue
		}
		i, ok := idx[s.DoctorID]
		if !ok {
			i = len(groups)
			idx[s.DoctorID] = i
			groups = append(groups, doctorGroup{doctorID: s.DoctorID})
		}
		groups[i].surveys = append(groups[i].surveys, s)
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].doctorID < groups[j].doctorID })
	return groups
}

func (a *Aggregator) processGroup(ctx context.Context, g doctorGroup) (*Rating, error) {
	values := make([]int, 0, len(g.surveys))
	ids := make([]int64, 0, len(g.surveys))
	for _, s := range g.surveys {
		values = append(values, *s.Rating)
		ids = append(ids, s.ID)
	}

	mean := BatchMean(values)

	var saved *Rating

	// Claiming the surveys first makes a concurrent run wait on their rows and
	// then find them processed.
	err := a.repo.WithinTx(ctx, func(tx Repository) error {
		if err := tx.MarkProcessed(ctx, ids); err != nil {
			return err
		}

		current, err := tx.GetRatingByDoctor(ctx, g.doctorID)
		if err != nil && !errors.Is(err, ErrRatingNotFound) {
			return fmt.Errorf("load rating: %w", err)
		}

		next := Merge(current, g.doctorID, mean, len(values))

		saved, err = tx.SaveRating(ctx, next)
		if err != nil {
			return fmt.Errorf("save rating: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.log.Info("new rating calculated",
		zap.Int64("doctor_id", saved.DoctorID),
		zap.String("rating", saved.Average.StringFixed(ratingPrecision)),
		zap.Int("number_of_ratings", saved.Count),
	)
	return saved, nil
}

func (a *Aggregator) publish(ctx context.Context, ev events.RatingEvent) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := a.publisher.PublishRating(pubCtx, ev); err != nil {
		a.log.Error("failed to publish rating event",
			zap.Int64("doctor_id", ev.DoctorID),
			zap.Error(err),
		)
	}
}

// BatchMean is the mean of values rounded half up to two places.
func BatchMean(values []int) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	var sum int64
	for _, v := range values {
		sum += int64(v)
	}
	return decimal.NewFromInt(sum).DivRound(decimal.NewFromInt(int64(len(values))), ratingPrecision)
}

// Merge weighs a batch mean of count ratings into the current aggregate.
// A nil current starts a new aggregate from the batch.
func Merge(current *Rating, doctorID int64, batchMean decimal.Decimal, count int) Rating {
	if current == nil {
		return Rating{DoctorID: doctorID, Average: batchMean, Count: count}
	}

	total := current.Count + count
	weighted := current.Average.Mul(decimal.NewFromInt(int64(current.Count))).
		Add(batchMean.Mul(decimal.NewFromInt(int64(count))))

	return Rating{
		ID:       current.ID,
		DoctorID: doctorID,
		Average:  weighted.DivRound(decimal.NewFromInt(int64(total)), ratingPrecision),
		Count:    total,
	}
}
