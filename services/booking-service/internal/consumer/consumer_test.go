package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/instructorbook/libs/kafkax"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/identity"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/inbox"
)

type fakeReader struct {
	msgs   []kafka.Message
	closed bool
	cancel context.CancelFunc
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func instructorMessage(eventID, body string) kafka.Message {
	return kafka.Message{
		Topic:   TopicInstructorUpdated,
		Value:   []byte(body),
		Headers: kafkax.EventMeta{EventID: eventID, EventType: TopicInstructorUpdated, Version: "1"}.Headers(),
	}
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRunUpsertsInstructorsAndSkipsDuplicates(t *testing.T) {
	dir := identity.NewMemoryDirectory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{cancel: cancel, msgs: []kafka.Message{
		instructorMessage("e1", `{"instructor_id":"inst-1","role":"Instructor","active":true,"updated_at":"2026-03-01T10:00:00Z"}`),
		instructorMessage("e2", `{"instructor_id":"inst-1","role":"instructor","active":false,"updated_at":"2026-03-01T09:00:00Z"}`),
		instructorMessage("e1", `{"instructor_id":"inst-1","role":"instructor","active":false,"updated_at":"2026-03-02T10:00:00Z"}`),
	}}

	New(discard(), reader, inbox.NewMemory(), InstructorHandler(dir)).Run(ctx)

	in, ok, err := dir.Instructor(context.Background(), "inst-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, in.Active, "stale and duplicate events must not overwrite the newest state")
	assert.Equal(t, "instructor", in.Role)
	assert.True(t, reader.closed)
}

func TestProcessRejectsBadPayload(t *testing.T) {
	c := New(discard(), nil, inbox.NewMemory(), InstructorHandler(identity.NewMemoryDirectory()))
	err := c.Process(context.Background(), instructorMessage("e1", `{"role":"instructor"}`))
	require.Error(t, err)

	err = c.Process(context.Background(), instructorMessage("e2", `not json`))
	require.Error(t, err)
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, string, string) (bool, error) {
	return false, errors.New("db down")
}

func TestProcessStopsWhenInboxFails(t *testing.T) {
	called := false
	c := New(discard(), nil, failingRecorder{}, func(context.Context, kafka.Message) error {
		called = true
		return nil
	})
	require.Error(t, c.Process(context.Background(), instructorMessage("e1", `{}`)))
	assert.False(t, called)
}

func TestHandlerFallsBackToMessageTime(t *testing.T) {
	dir := identity.NewMemoryDirectory()
	msg := instructorMessage("e1", `{"instructor_id":"inst-9","role":"admin","active":true}`)
	msg.Time = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, InstructorHandler(dir)(context.Background(), msg))
	in, ok, _ := dir.Instructor(context.Background(), "inst-9")
	require.True(t, ok)
	assert.Equal(t, msg.Time, in.UpdatedAt)
}
