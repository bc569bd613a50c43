package ratings

import "time"

// Observer receives survey and aggregation side effects for instrumentation.
type Observer interface {
	SurveyCreated()
	SurveySubmitted()
	SurveyDiscarded()
	SurveysProcessed(n int)
	AggregationFinished(took time.Duration, failedGroups int)
}

type NopObserver struct{}

func (NopObserver) SurveyCreated()                         {}
func (NopObserver) SurveySubmitted()                       {}
func (NopObserver) SurveyDiscarded()                       {}
func (NopObserver) SurveysProcessed(int)                   {}
func (NopObserver) AggregationFinished(time.Duration, int) {}
