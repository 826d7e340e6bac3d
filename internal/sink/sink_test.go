package sink

import (
	"context"
	"errors"
	"testing"
)

type recordingNotifier struct {
	messages []string
}

func (r *recordingNotifier) Notify(ctx context.Context, message string) error {
	r.messages = append(r.messages, message)
	return nil
}

func TestHandleInsertErrorNilIsNil(t *testing.T) {
	m := &Mongo{notifier: &recordingNotifier{}}
	if err := m.handleInsertError(context.Background(), "tickers", nil); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestHandleInsertErrorOtherErrorNotifiesAndWraps(t *testing.T) {
	rn := &recordingNotifier{}
	m := &Mongo{notifier: rn}

	err := m.handleInsertError(context.Background(), "tickers", errors.New("connection reset"))
	if err == nil {
		t.Fatal("expected a wrapped error")
	}
	if len(rn.messages) != 1 {
		t.Fatalf("expected exactly 1 notification, got %d", len(rn.messages))
	}
}
