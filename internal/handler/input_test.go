package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"groundtruth/internal/boxid"
	"groundtruth/internal/dto"
	"groundtruth/internal/repository"
	"groundtruth/internal/service/session"
	"groundtruth/internal/service/validation"
)

func TestCheckSessionID(t *testing.T) {
	valid := []string{"a", "abc-123_X", strings.Repeat("s", 100)}
	invalidIDs := []string{"", strings.Repeat("s", 101), "a b", "../etc", "a/b", "ünï"}

	for _, id := range valid {
		if err := checkSessionID(id); err != nil {
			t.Errorf("checkSessionID(%q) unexpected error: %v", id, err)
		}
	}
	for _, id := range invalidIDs {
		if err := checkSessionID(id); !errors.Is(err, errInvalidInput) {
			t.Errorf("checkSessionID(%q) expected errInvalidInput, got %v", id, err)
		}
	}
}

func TestCheckImageID(t *testing.T) {
	if err := checkImageID("frame_0001"); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if err := checkImageID(strings.Repeat("i", 151)); err == nil {
		t.Error("Expected error for over-long image id")
	}
	if err := checkImageID("cam_box_1"); !errors.Is(err, errInvalidInput) {
		t.Errorf("Image id holding the box separator must be rejected, got %v", err)
	}
}

func TestCleanLabel(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"person", "person", false},
		{"  traffic light ", "traffic light", false},
		{"fire_hydrant-2", "fire_hydrant-2", false},
		{"<script>", "", true},
		{"", "", true},
		{"   ", "", true},
		{"\t\n", "", true},
		{strings.Repeat("x", 51), "", true},
	}

	for _, tt := range tests {
		got, err := cleanLabel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("cleanLabel(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestCleanNotes(t *testing.T) {
	got, err := cleanNotes(`  <b>"partly" hidden</b> & 'blurry' \ `)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != "bpartly hiddenb  blurry" {
		t.Errorf("Unexpected cleaned notes: %q", got)
	}

	// Stripped characters do not count against the limit.
	if _, err := cleanNotes(strings.Repeat("a", 500) + "<<<>>>"); err != nil {
		t.Errorf("Expected notes within limit after stripping: %v", err)
	}
	if _, err := cleanNotes(strings.Repeat("a", 501)); err == nil {
		t.Error("Expected error for notes over 500 characters")
	}
}

func TestCheckValidationRequest(t *testing.T) {
	over := 1.5
	ok := 0.3

	tests := []struct {
		name    string
		req     dto.ValidationRequest
		wantErr bool
	}{
		{"empty batch", dto.ValidationRequest{}, true},
		{"too many", dto.ValidationRequest{Validations: make([]dto.BoxValidation, 4)}, true},
		{"empty box id", dto.ValidationRequest{Validations: []dto.BoxValidation{{BoxID: ""}}}, true},
		{"override out of range", dto.ValidationRequest{Validations: []dto.BoxValidation{{BoxID: "a_box_0", ConfidenceOverride: &over}}}, true},
		{"valid", dto.ValidationRequest{Validations: []dto.BoxValidation{{BoxID: "a_box_0", ConfidenceOverride: &ok, Notes: " <ok> "}}}, false},
	}

	for _, tt := range tests {
		err := checkValidationRequest(&tt.req, 3)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: unexpected error state: %v", tt.name, err)
		}
	}

	req := dto.ValidationRequest{Validations: []dto.BoxValidation{{BoxID: "a_box_0", Notes: " <ok> "}}}
	if err := checkValidationRequest(&req, 3); err != nil || req.Validations[0].Notes != "ok" {
		t.Errorf("Notes should be cleaned in place, got %q (%v)", req.Validations[0].Notes, err)
	}
}

func TestCheckDetectionRequest(t *testing.T) {
	req := dto.DetectionRequest{
		ImageID: "frame1",
		Boxes:   []dto.DetectionResult{{Confidence: 0.5, Label: " car "}},
	}
	if err := checkDetectionRequest(&req); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if req.Boxes[0].Label != "car" {
		t.Errorf("Label should be trimmed, got %q", req.Boxes[0].Label)
	}

	req.Boxes[0].Confidence = 1.2
	if err := checkDetectionRequest(&req); err == nil {
		t.Error("Expected error for confidence above 1")
	}

	bad := dto.DetectionRequest{ImageID: "x_box_1"}
	if err := checkDetectionRequest(&bad); err == nil {
		t.Error("Expected error for image id holding the separator")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{invalid("bad"), http.StatusBadRequest},
		{fmt.Errorf("correction 0: %w", boxid.ErrMalformed), http.StatusBadRequest},
		{session.ErrUnsupportedFormat, http.StatusBadRequest},
		{fmt.Errorf("%w: s1", repository.ErrSessionNotFound), http.StatusNotFound},
		{validation.ErrImageNotFound, http.StatusNotFound},
		{validation.ErrBoxNotFound, http.StatusNotFound},
		{session.ErrImageExists, http.StatusConflict},
		{session.ErrSessionFull, http.StatusTooManyRequests},
		{repository.ErrVersionConflict, http.StatusInternalServerError},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, expected %d", tt.err, got, tt.want)
		}
	}
}

func TestAtoiDefault(t *testing.T) {
	tests := []struct {
		input    string
		def      int
		expected int
	}{
		{"10", 5, 10},
		{"1", 0, 1},
		{"", 5, 5},
		{"abc", 10, 10},
		{"-1", 5, 5},
		{"0", 5, 5},
		{"12.5", 5, 5},
	}

	for _, tt := range tests {
		result := atoiDefault(tt.input, tt.def)
		if result != tt.expected {
			t.Errorf("atoiDefault(%q, %d) = %d, expected %d", tt.input, tt.def, result, tt.expected)
		}
	}
}

func TestParseDateAndEndOfDay(t *testing.T) {
	if !parseDate("").IsZero() || !parseDate("not-a-date").IsZero() {
		t.Error("Expected zero time for empty or invalid input")
	}

	d := parseDate("2024-01-15")
	if d.Year() != 2024 || d.Month() != time.January || d.Day() != 15 {
		t.Errorf("Unexpected date: %v", d)
	}

	end := endOfDay(d)
	if end.Day() != 15 || end.Hour() != 23 || end.Minute() != 59 {
		t.Errorf("Unexpected end of day: %v", end)
	}
	if !endOfDay(time.Time{}).IsZero() {
		t.Error("endOfDay of zero time should stay zero")
	}
}
