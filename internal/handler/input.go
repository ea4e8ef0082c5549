package handler

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"groundtruth/internal/boxid"
	"groundtruth/internal/dto"
)

const (
	maxSessionIDLength = 100
	maxImageIDLength   = 150
	maxBoxIDLength     = 200
	maxLabelLength     = 50
	maxNotesLength     = 500
)

var (
	errInvalidInput = errors.New("invalid input")

	idPattern    = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	labelPattern = regexp.MustCompile(`^[a-zA-Z0-9\s_-]+$`)
	notesStrip   = strings.NewReplacer("<", "", ">", "", `"`, "", "'", "", `\`, "", "/", "", "&", "")
)

func invalid(format string, v ...interface{}) error {
	return fmt.Errorf("%w: %s", errInvalidInput, fmt.Sprintf(format, v...))
}

func checkSessionID(id string) error {
	if len(id) == 0 || len(id) > maxSessionIDLength || !idPattern.MatchString(id) {
		return invalid("session id must be 1-%d letters, digits, '_' or '-'", maxSessionIDLength)
	}
	return nil
}

// checkImageID rejects ids that would make box ids ambiguous.
func checkImageID(id string) error {
	if len(id) == 0 || len(id) > maxImageIDLength || !idPattern.MatchString(id) {
		return invalid("image id must be 1-%d letters, digits, '_' or '-'", maxImageIDLength)
	}
	if boxid.ContainsSeparator(id) {
		return invalid("image id must not contain %q", boxid.Separator)
	}
	return nil
}

func checkBoxID(id string) error {
	if len(id) == 0 || len(id) > maxBoxIDLength {
		return invalid("box id must be 1-%d characters", maxBoxIDLength)
	}
	return nil
}

// cleanLabel trims the label and checks its charset.
func cleanLabel(label string) (string, error) {
	label = strings.TrimSpace(label)
	if len(label) > maxLabelLength || !labelPattern.MatchString(label) {
		return "", invalid("label must be 1-%d letters, digits, spaces, '_' or '-'", maxLabelLength)
	}
	return label, nil
}

// cleanNotes strips markup characters and trims.
func cleanNotes(notes string) (string, error) {
	notes = strings.TrimSpace(notesStrip.Replace(notes))
	if len(notes) > maxNotesLength {
		return "", invalid("notes must be at most %d characters", maxNotesLength)
	}
	return notes, nil
}

func checkUnit(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return invalid("%s must be between 0 and 1", name)
	}
	return nil
}

func checkCoordinates(x1, y1, x2, y2 float64) error {
	for _, v := range []float64{x1, y1, x2, y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalid("coordinates must be finite")
		}
	}
	return nil
}

func checkDetectionRequest(req *dto.DetectionRequest) error {
	if req.ImageID != "" {
		if err := checkImageID(req.ImageID); err != nil {
			return err
		}
	}
	if math.IsNaN(req.ElapsedSeconds) || math.IsInf(req.ElapsedSeconds, 0) {
		return invalid("elapsed_seconds must be finite")
	}
	for i := range req.Boxes {
		b := &req.Boxes[i]
		if err := checkCoordinates(b.X1, b.Y1, b.X2, b.Y2); err != nil {
			return err
		}
		if err := checkUnit("confidence", b.Confidence); err != nil {
			return err
		}
		label, err := cleanLabel(b.Label)
		if err != nil {
			return err
		}
		b.Label = label
	}
	return nil
}

func checkValidationRequest(req *dto.ValidationRequest, maxBatch int) error {
	if len(req.Validations) == 0 || len(req.Validations) > maxBatch {
		return invalid("validations must hold 1-%d entries", maxBatch)
	}
	for i := range req.Validations {
		v := &req.Validations[i]
		if err := checkBoxID(v.BoxID); err != nil {
			return err
		}
		if v.ConfidenceOverride != nil {
			if err := checkUnit("confidence_override", *v.ConfidenceOverride); err != nil {
				return err
			}
		}
		notes, err := cleanNotes(v.Notes)
		if err != nil {
			return err
		}
		v.Notes = notes
	}
	return nil
}

func checkManualBoxRequest(req *dto.ManualBoxRequest) error {
	if err := checkCoordinates(req.X1, req.Y1, req.X2, req.Y2); err != nil {
		return err
	}
	label, err := cleanLabel(req.Label)
	if err != nil {
		return err
	}
	notes, err := cleanNotes(req.Notes)
	if err != nil {
		return err
	}
	req.Label, req.Notes = label, notes
	return nil
}
