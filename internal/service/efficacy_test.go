package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"promptforge/internal/domain"
	"promptforge/internal/domain/efficacy"
	"promptforge/internal/domain/prompt"
)

func TestGetReturnsPriorForKnownKey(t *testing.T) {
	s := NewEfficacyStore(0.3, nil)

	got := s.Get(efficacy.ComponentTask(prompt.ComponentInstruction, prompt.TaskDeduction))
	if got != 0.8 {
		t.Fatalf("expected prior 0.8, got %v", got)
	}
}

func TestGetReturnsDefaultForUnknownKey(t *testing.T) {
	s := NewEfficacyStore(0.3, nil)

	got := s.Get(efficacy.ComponentTask(prompt.ComponentPersona, prompt.TaskComparison))
	if got != efficacy.DefaultPrior {
		t.Fatalf("expected default prior %v, got %v", efficacy.DefaultPrior, got)
	}
}

func TestUpdateBlendsTowardObserved(t *testing.T) {
	s := NewEfficacyStore(0.3, nil)
	key := efficacy.ComponentTask(prompt.ComponentInstruction, prompt.TaskDeduction)

	records, version, err := s.Update(context.Background(), []efficacy.Key{key}, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != 1 {
		t.Fatalf("expected version 1, got %d", version)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	// 0.8 + 0.3*(1.0-0.8) = 0.86
	if math.Abs(records[0].Value-0.86) > 1e-9 {
		t.Fatalf("expected blended value 0.86, got %v", records[0].Value)
	}
	if got := s.Get(key); math.Abs(got-0.86) > 1e-9 {
		t.Fatalf("store did not retain blended value, got %v", got)
	}
}

func TestUpdateConvergesWithoutOvershoot(t *testing.T) {
	s := NewEfficacyStore(0.3, nil)
	key := efficacy.ComponentBehavior(prompt.ComponentConstraint, prompt.BehaviorPrecision)

	prev := s.Get(key)
	for i := 0; i < 50; i++ {
		if _, _, err := s.Update(context.Background(), []efficacy.Key{key}, 1.0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		cur := s.Get(key)
		if cur < prev {
			t.Fatalf("value regressed from %v to %v on iteration %d", prev, cur, i)
		}
		if cur > efficacy.MaxValue {
			t.Fatalf("value overshot to %v on iteration %d", cur, i)
		}
		prev = cur
	}

	if math.Abs(prev-1.0) > 1e-6 {
		t.Fatalf("expected convergence to 1.0, got %v", prev)
	}
}

func TestUpdateAdvancesVersionOncePerCall(t *testing.T) {
	s := NewEfficacyStore(0.3, nil)
	keys := []efficacy.Key{
		efficacy.ComponentTask(prompt.ComponentExample, prompt.TaskDeduction),
		efficacy.ComponentBehavior(prompt.ComponentExample, prompt.BehaviorStepByStep),
	}

	if _, version, err := s.Update(context.Background(), keys, 0.9); err != nil {
		t.Fatalf("unexpected error: %v", err)
	} else if version != 1 {
		t.Fatalf("expected one version bump for multi-key update, got %d", version)
	}
}

func TestUpdateRejectsOutOfRange(t *testing.T) {
	s := NewEfficacyStore(0.3, nil)
	key := efficacy.ComponentTask(prompt.ComponentInstruction, prompt.TaskDeduction)
	before := s.Get(key)

	for _, observed := range []float64{-0.1, 1.5} {
		_, _, err := s.Update(context.Background(), []efficacy.Key{key}, observed)
		if !errors.Is(err, domain.ErrInvalidFeedback) {
			t.Fatalf("observed %v: expected ErrInvalidFeedback, got %v", observed, err)
		}
	}

	if s.Version() != 0 {
		t.Fatalf("rejected update must not advance version, got %d", s.Version())
	}
	if got := s.Get(key); got != before {
		t.Fatalf("rejected update must not change value, got %v", got)
	}
}

func TestSnapshotCollectsRelevantValues(t *testing.T) {
	s := NewEfficacyStore(0.3, nil)

	snap := s.Snapshot(
		[]prompt.TaskType{prompt.TaskDeduction},
		[]prompt.BehaviorType{prompt.BehaviorStepByStep},
		"gpt-4", "education",
	)

	if snap.Version != 0 {
		t.Fatalf("expected version 0, got %d", snap.Version)
	}

	checks := []efficacy.Key{
		efficacy.ComponentTask(prompt.ComponentInstruction, prompt.TaskDeduction),
		efficacy.ModelComponentTask("gpt-4", prompt.ComponentInstruction, prompt.TaskDeduction),
		efficacy.ComponentBehavior(prompt.ComponentExample, prompt.BehaviorStepByStep),
		efficacy.DomainComponent("education", prompt.ComponentExample),
		efficacy.PairOrder(prompt.ComponentPersona, prompt.ComponentInstruction),
	}
	for _, k := range checks {
		if _, ok := snap.Values[k]; !ok {
			t.Errorf("snapshot missing %s", k)
		}
	}

	// Values outside the request dimensions stay out of the snapshot.
	if _, ok := snap.Values[efficacy.ComponentTask(prompt.ComponentExample, prompt.TaskInduction)]; ok {
		t.Error("snapshot contains value for an unrequested task")
	}
}
