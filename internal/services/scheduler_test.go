package services

import (
	"context"
	"testing"
	"time"

	"github.com/doomedramen/autopwn/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSchedulerStore struct {
	claimable    map[models.JobType][]*models.Job
	claimedLimit int
	requeued     int64
	expired      []*models.Job
	stopped      []uuid.UUID
}

func (s *fakeSchedulerStore) ClaimNext(ctx context.Context, jobType models.JobType, limit int) (*models.Job, error) {
	s.claimedLimit = limit
	queue := s.claimable[jobType]
	if len(queue) == 0 {
		return nil, nil
	}
	job := queue[0]
	s.claimable[jobType] = queue[1:]
	job.Status = models.JobStatusProcessing
	return job, nil
}

func (s *fakeSchedulerStore) RequeueStalled(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.requeued, nil
}

func (s *fakeSchedulerStore) ListRuntimeExceeded(ctx context.Context, cutoff time.Time) ([]*models.Job, error) {
	return s.expired, nil
}

func (s *fakeSchedulerStore) MarkStopped(ctx context.Context, id uuid.UUID) (int64, error) {
	s.stopped = append(s.stopped, id)
	return 1, nil
}

func TestSchedulerClaimNextPublishesProcessingEvent(t *testing.T) {
	job := &models.Job{ID: uuid.New(), JobType: models.JobTypeCrack, Status: models.JobStatusPending}
	store := &fakeSchedulerStore{
		claimable: map[models.JobType][]*models.Job{models.JobTypeCrack: {job}},
	}
	pub := &fakePublisher{}
	s := NewScheduler(store, pub, SchedulerConfig{
		Limits: map[models.JobType]int{models.JobTypeCrack: 2},
	})

	claimed, err := s.ClaimNext(context.Background(), models.JobTypeCrack)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, job.ID, claimed.ID)
	assert.Equal(t, 2, store.claimedLimit, "store receives the configured limit")

	require.Equal(t, 1, pub.count())
	assert.Equal(t, models.JobStatusProcessing, pub.events[0].Status)
}

func TestSchedulerClaimNextEmptyQueue(t *testing.T) {
	store := &fakeSchedulerStore{claimable: map[models.JobType][]*models.Job{}}
	pub := &fakePublisher{}
	s := NewScheduler(store, pub, SchedulerConfig{
		Limits: map[models.JobType]int{models.JobTypeCapture: 1},
	})

	claimed, err := s.ClaimNext(context.Background(), models.JobTypeCapture)
	require.NoError(t, err)
	assert.Nil(t, claimed)
	assert.Zero(t, pub.count())
}

func TestSchedulerClaimNextZeroLimitDisablesType(t *testing.T) {
	job := &models.Job{ID: uuid.New(), JobType: models.JobTypeDictionary}
	store := &fakeSchedulerStore{
		claimable: map[models.JobType][]*models.Job{models.JobTypeDictionary: {job}},
	}
	s := NewScheduler(store, &fakePublisher{}, SchedulerConfig{Limits: map[models.JobType]int{}})

	claimed, err := s.ClaimNext(context.Background(), models.JobTypeDictionary)
	require.NoError(t, err)
	assert.Nil(t, claimed, "a type without a limit never claims")
}

func TestSchedulerEnforceRuntimeLimitStopsExpiredJobs(t *testing.T) {
	expired := &models.Job{ID: uuid.New(), Status: models.JobStatusProcessing, Progress: 55}
	store := &fakeSchedulerStore{expired: []*models.Job{expired}}
	pub := &fakePublisher{}
	s := NewScheduler(store, pub, SchedulerConfig{MaxJobRuntime: time.Hour})

	s.enforceRuntimeLimit(context.Background())

	require.Len(t, store.stopped, 1)
	assert.Equal(t, expired.ID, store.stopped[0])
	require.Equal(t, 1, pub.count())
	assert.Equal(t, models.JobStatusStopped, pub.events[0].Status)
	assert.Equal(t, float64(55), pub.events[0].Progress)
}

func TestSchedulerEnforceRuntimeLimitDisabled(t *testing.T) {
	store := &fakeSchedulerStore{expired: []*models.Job{{ID: uuid.New()}}}
	s := NewScheduler(store, &fakePublisher{}, SchedulerConfig{})

	s.enforceRuntimeLimit(context.Background())
	assert.Empty(t, store.stopped, "zero limit disables the sweep")
}
