package validation

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"groundtruth/internal/boxid"
	"groundtruth/internal/config"
	"groundtruth/internal/dto"
	"groundtruth/internal/logger"
	"groundtruth/internal/model"
	"groundtruth/internal/truemetrics"
)

var fixedNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func setupEngine(t *testing.T, policy ManualBoxPolicy) *Engine {
	t.Helper()

	log, err := logger.NewLogger(&config.Config{LogDirectory: t.TempDir()})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	t.Cleanup(func() { log.Close() })

	e := NewEngine(policy, log)
	e.now = func() time.Time { return fixedNow }
	return e
}

// twoImageSession holds img1 with boxes 0..2 and img2 with boxes 0..1.
func twoImageSession() *model.Session {
	s := model.NewSession("s1", fixedNow)
	for _, img := range []struct {
		id string
		n  int
	}{{"img1", 3}, {"img2", 2}} {
		boxes := make([]model.Box, img.n)
		for i := range boxes {
			boxes[i] = model.NewDetectorBox(0, 0, 10, 10, 0.9, "car", 2)
		}
		s.Images = append(s.Images, model.NewImageRecord(img.id, fixedNow, boxes, model.DetectorMetrics{BoxCount: img.n}))
	}
	return s
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func floatPtr(v float64) *float64 { return &v }

func TestApplyBatch_AppliesInOrder(t *testing.T) {
	e := setupEngine(t, ManualVerifiedOnCreate)
	s := twoImageSession()

	res, err := e.ApplyBatch(s, []dto.BoxValidation{
		{BoxID: "img1_box_0", IsCorrect: true},
		{BoxID: "img1_box_1", IsCorrect: false, ConfidenceOverride: floatPtr(0.25), Notes: "shadow"},
		{BoxID: "img1_box_1", IsCorrect: true},
	})
	if err != nil {
		t.Fatalf("ApplyBatch failed: %v", err)
	}
	if res.Applied != 3 || len(res.Skipped) != 0 {
		t.Errorf("Unexpected result: %+v", res)
	}

	b := s.Images[0].Boxes[1]
	if !b.IsVerified || !b.IsCorrect {
		t.Errorf("Last write should win, got verified=%v correct=%v", b.IsVerified, b.IsCorrect)
	}
	if b.Confidence != 0.25 {
		t.Errorf("Override should persist, got %v", b.Confidence)
	}
	if b.Notes != "shadow" {
		t.Errorf("Empty notes must not clear earlier notes, got %q", b.Notes)
	}
	if b.VerifiedAt == nil || !b.VerifiedAt.Equal(fixedNow) {
		t.Errorf("Expected VerifiedAt %v, got %v", fixedNow, b.VerifiedAt)
	}
	if s.Images[0].Boxes[2].IsVerified {
		t.Error("Untouched box must stay unverified")
	}
}

func TestApplyBatch_HardErrorLeavesSessionUntouched(t *testing.T) {
	tests := []struct {
		name string
		bad  string
		want error
	}{
		{"malformed id", "img1-box-0", boxid.ErrMalformed},
		{"unknown image", "img9_box_0", ErrImageNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := setupEngine(t, ManualVerifiedOnCreate)
			s := twoImageSession()
			before := mustJSON(t, s)

			_, err := e.ApplyBatch(s, []dto.BoxValidation{
				{BoxID: "img1_box_0", IsCorrect: false},
				{BoxID: "img2_box_1", IsCorrect: true},
				{BoxID: tt.bad, IsCorrect: true},
			})
			if !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
			if after := mustJSON(t, s); after != before {
				t.Errorf("Session mutated by a rejected batch:\nbefore %s\nafter  %s", before, after)
			}
		})
	}
}

func TestApplyBatch_UnknownBoxIsSkipped(t *testing.T) {
	e := setupEngine(t, ManualVerifiedOnCreate)
	s := twoImageSession()

	res, err := e.ApplyBatch(s, []dto.BoxValidation{
		{BoxID: "img1_box_7", IsCorrect: true},
		{BoxID: "img2_box_0", IsCorrect: false},
	})
	if err != nil {
		t.Fatalf("Soft skip must not fail the batch: %v", err)
	}
	if res.Applied != 1 || len(res.Skipped) != 1 || res.Skipped[0] != "img1_box_7" {
		t.Errorf("Unexpected result: %+v", res)
	}
	if !s.Images[1].Boxes[0].IsVerified {
		t.Error("Correction after a skip must still apply")
	}
}

func TestApplyBatch_Idempotent(t *testing.T) {
	e := setupEngine(t, ManualVerifiedOnCreate)
	s := twoImageSession()
	batch := []dto.BoxValidation{
		{BoxID: "img1_box_0", IsCorrect: true},
		{BoxID: "img1_box_2", IsCorrect: false, ConfidenceOverride: floatPtr(0.1)},
	}

	if _, err := e.ApplyBatch(s, batch); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	once := mustJSON(t, s)
	if _, err := e.ApplyBatch(s, batch); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if twice := mustJSON(t, s); twice != once {
		t.Errorf("Applying the same batch twice changed the session")
	}
}

func TestAddManual_VerifiedPolicy(t *testing.T) {
	e := setupEngine(t, ManualVerifiedOnCreate)
	s := twoImageSession()

	// img1: one confirmed and one rejected detection, plus a missed object drawn by hand.
	if _, err := e.ApplyBatch(s, []dto.BoxValidation{
		{BoxID: "img1_box_0", IsCorrect: true},
		{BoxID: "img1_box_1", IsCorrect: false},
	}); err != nil {
		t.Fatalf("ApplyBatch failed: %v", err)
	}

	id, err := e.AddManual(s, "img1", model.Box{X1: 1, Y1: 1, X2: 5, Y2: 5, Label: "dog", Confidence: 1})
	if err != nil {
		t.Fatalf("AddManual failed: %v", err)
	}
	if id != "img1_box_3" {
		t.Errorf("Expected img1_box_3, got %s", id)
	}

	b := s.Images[0].Boxes[3]
	if !b.IsManual || !b.IsVerified || !b.IsCorrect || b.VerifiedAt == nil {
		t.Errorf("Manual box should be verified on create: %+v", b)
	}

	m := truemetrics.Calculate(s.Images)
	if m.TruePositives != 2 || m.FalsePositives != 1 || m.FalseNegatives != 0 {
		t.Errorf("Unexpected counts: %+v", m)
	}
}

func TestAddManual_PendingPolicy(t *testing.T) {
	e := setupEngine(t, ManualPendingReview)
	s := twoImageSession()

	id, err := e.AddManual(s, "img2", model.Box{Label: "bike"})
	if err != nil {
		t.Fatalf("AddManual failed: %v", err)
	}

	m := truemetrics.Calculate(s.Images)
	if m.FalseNegatives != 1 {
		t.Errorf("Pending manual box should count as FN, got %+v", m)
	}

	if _, err := e.ApplyBatch(s, []dto.BoxValidation{{BoxID: id, IsCorrect: true}}); err != nil {
		t.Fatalf("ApplyBatch failed: %v", err)
	}
	m = truemetrics.Calculate(s.Images)
	if m.FalseNegatives != 0 || m.TruePositives != 1 {
		t.Errorf("Confirmed manual box should be TP, got %+v", m)
	}
}

func TestAddManual_UnknownImage(t *testing.T) {
	e := setupEngine(t, ManualVerifiedOnCreate)

	if _, err := e.AddManual(twoImageSession(), "nope", model.Box{}); !errors.Is(err, ErrImageNotFound) {
		t.Errorf("Expected ErrImageNotFound, got %v", err)
	}
}

func TestDelete_TwiceAndNoIDReuse(t *testing.T) {
	e := setupEngine(t, ManualVerifiedOnCreate)
	s := twoImageSession()

	if err := e.Delete(s, "img1", "img1_box_2"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := e.Delete(s, "img1", "img1_box_2"); !errors.Is(err, ErrBoxNotFound) {
		t.Errorf("Expected ErrBoxNotFound on second delete, got %v", err)
	}
	if err := e.Delete(s, "img7", "img7_box_0"); !errors.Is(err, ErrImageNotFound) {
		t.Errorf("Expected ErrImageNotFound, got %v", err)
	}

	id, err := e.AddManual(s, "img1", model.Box{Label: "cat"})
	if err != nil {
		t.Fatalf("AddManual failed: %v", err)
	}
	if id == "img1_box_2" {
		t.Error("Deleted box id was handed out again")
	}
	if id != "img1_box_3" {
		t.Errorf("Expected img1_box_3, got %s", id)
	}
}

func TestParseManualBoxPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    ManualBoxPolicy
		wantErr bool
	}{
		{"", ManualVerifiedOnCreate, false},
		{"verified", ManualVerifiedOnCreate, false},
		{"pending", ManualPendingReview, false},
		{"sometimes", "", true},
	}

	for _, tt := range tests {
		got, err := ParseManualBoxPolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseManualBoxPolicy(%q) = %q, %v", tt.in, got, err)
		}
	}
}
