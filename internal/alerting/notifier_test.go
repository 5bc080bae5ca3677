package alerting

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingNotifier struct {
	calls int
	err   error
}

func (r *recordingNotifier) Notify(ctx context.Context, note Notification) error {
	r.calls++
	return r.err
}

func TestMultiNotifierContinuesAfterFailure(t *testing.T) {
	boom := errors.New("boom")
	first := &recordingNotifier{err: boom}
	second := &recordingNotifier{}

	multi := NewMulti(testLogger(), first, nil, second)
	assert.Equal(t, 2, multi.Len())

	err := multi.Notify(context.Background(), testNotification())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestMultiNotifierEmpty(t *testing.T) {
	assert.NoError(t, NewMulti(testLogger()).Notify(context.Background(), testNotification()))
}
