package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuantLens/internal/domain/models"
	domsvc "QuantLens/internal/domain/service"
	"QuantLens/pkg/queue"
)

type trainOnly struct {
	domsvc.Intelligence
	got models.TrainParams
	err error
}

func (f *trainOnly) TrainRegimeModel(_ context.Context, p models.TrainParams) (*models.TrainingReport, error) {
	f.got = p
	if f.err != nil {
		return nil, f.err
	}
	return &models.TrainingReport{Symbol: p.Symbol, Accuracy: 0.8, SampleCount: 100}, nil
}

type fakeQueue struct {
	msgType string
	payload []byte
}

func (q *fakeQueue) Enqueue(_ context.Context, msgType string, payload interface{}) error {
	b, err := json.Marshal(payload)
	q.msgType, q.payload = msgType, b
	return err
}

var _ queue.Publisher = (*fakeQueue)(nil)

func TestRetrainRoundTrip(t *testing.T) {
	q := &fakeQueue{}
	params := models.TrainParams{Symbol: "QQQ", N: 2000, Seed: 9, Estimators: 25}
	require.NoError(t, NewQueueRetrainScheduler(q).ScheduleRetrain(context.Background(), params))
	assert.Equal(t, RetrainJobType, q.msgType)

	intel := &trainOnly{}
	job := NewRetrainJob(intel, nil)
	assert.Equal(t, RetrainJobType, job.Type())
	require.NoError(t, job.Handle(context.Background(), q.payload))
	assert.Equal(t, params, intel.got)
}

func TestRetrainJob_Errors(t *testing.T) {
	intel := &trainOnly{err: ErrTrainingInProgress}
	job := NewRetrainJob(intel, nil)

	assert.Error(t, job.Handle(context.Background(), nil))
	err := job.Handle(context.Background(), []byte(`{"symbol":"SPY"}`))
	assert.True(t, errors.Is(err, ErrTrainingInProgress))
}
