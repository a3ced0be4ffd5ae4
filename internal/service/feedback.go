package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"promptforge/internal/domain"
	"promptforge/internal/domain/efficacy"
	"promptforge/internal/domain/prompt"
	"promptforge/internal/port/messagequeue"
)

// FeedbackService applies effectiveness feedback to the efficacy store.
// Validation failures surface verbatim so the caller can correct input;
// cache invalidation needs no extra work because result fingerprints embed
// the store version the feedback just advanced.
type FeedbackService struct {
	efficacy *EfficacyStore
	queue    messagequeue.Queue // optional
}

// NewFeedbackService creates the feedback service.
func NewFeedbackService(efficacy *EfficacyStore, queue messagequeue.Queue) *FeedbackService {
	return &FeedbackService{efficacy: efficacy, queue: queue}
}

// Record validates and applies one feedback event. The observed value must
// lie within the effectiveness range; out-of-range input is rejected, not
// clamped. Returns the updated records and the new store version.
func (s *FeedbackService) Record(ctx context.Context, fb efficacy.Feedback) ([]efficacy.Record, uint64, error) {
	if !prompt.ValidComponentType(string(fb.Component)) {
		return nil, 0, fmt.Errorf("%w: unknown component type %q", domain.ErrInvalidFeedback, fb.Component)
	}
	if fb.Task == "" && fb.Behavior == "" {
		return nil, 0, fmt.Errorf("%w: task_type or behavior_type is required", domain.ErrInvalidFeedback)
	}
	if fb.Task != "" && !prompt.ValidTaskType(string(fb.Task)) {
		return nil, 0, fmt.Errorf("%w: unknown task type %q", domain.ErrInvalidFeedback, fb.Task)
	}
	if fb.Behavior != "" && !prompt.ValidBehaviorType(string(fb.Behavior)) {
		return nil, 0, fmt.Errorf("%w: unknown behavior type %q", domain.ErrInvalidFeedback, fb.Behavior)
	}
	if fb.Observed < efficacy.MinValue || fb.Observed > efficacy.MaxValue {
		return nil, 0, fmt.Errorf("%w: %v not in [%v,%v]",
			domain.ErrInvalidFeedback, fb.Observed, efficacy.MinValue, efficacy.MaxValue)
	}

	records, version, err := s.efficacy.Update(ctx, fb.Keys(), fb.Observed)
	if err != nil {
		return nil, 0, err
	}

	s.publish(fb, version)

	slog.Info("feedback recorded",
		"component", fb.Component,
		"task", fb.Task,
		"behavior", fb.Behavior,
		"observed", fb.Observed,
		"store_version", version,
	)
	return records, version, nil
}

func (s *FeedbackService) publish(fb efficacy.Feedback, version uint64) {
	if s.queue == nil {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"component_type": fb.Component,
		"task_type":      fb.Task,
		"behavior_type":  fb.Behavior,
		"effectiveness":  fb.Observed,
		"store_version":  version,
	})
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.queue.Publish(ctx, messagequeue.SubjectFeedbackRecorded, payload); err != nil {
		slog.Warn("publish feedback event", "error", err)
	}
}
