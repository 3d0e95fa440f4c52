package scheduling

import (
	"context"
	"time"

	"github.com/clinic/booking/internal/platform/sweeper"
)

const (
	JobFinish   = "finish"
	JobTaxonomy = "taxonomy"
)

// FinishElapsed marks every approved or rescheduled appointment whose end
// has passed as finished. The status and time filter live in a single
// statement, so running it twice or alongside request writes is safe.
func (s *Service) FinishElapsed(ctx context.Context) (int64, error) {
	n, err := s.appointments.FinishElapsed(ctx, s.now())
	if err != nil {
		return 0, classify(err)
	}
	if n > 0 {
		s.logger.Info().Int64("count", n).Msg("appointments finished")
	}
	return n, nil
}

// CleanTaxonomy deletes causes no doctor treats, then specialties no doctor
// has.
func (s *Service) CleanTaxonomy(ctx context.Context) (causes, specialties int64, err error) {
	err = s.inTx(ctx, func(ctx context.Context) error {
		var err error
		if causes, err = s.causes.DeleteUnreferenced(ctx); err != nil {
			return err
		}
		specialties, err = s.specialties.DeleteUnreferenced(ctx)
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	if causes+specialties > 0 {
		s.logger.Info().Int64("causes", causes).Int64("specialties", specialties).Msg("unused taxonomy removed")
	}
	return causes, specialties, nil
}

// SweepJobs returns the background jobs for a sweeper.Scheduler.
func (s *Service) SweepJobs(finishEvery, cleanEvery time.Duration) []sweeper.Job {
	return []sweeper.Job{
		{
			Name:     JobFinish,
			Interval: finishEvery,
			Run: func(ctx context.Context) error {
				_, err := s.FinishElapsed(ctx)
				return err
			},
		},
		{
			Name:     JobTaxonomy,
			Interval: cleanEvery,
			Run: func(ctx context.Context) error {
				_, _, err := s.CleanTaxonomy(ctx)
				return err
			},
		},
	}
}
