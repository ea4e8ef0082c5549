// Package boxid builds and parses box identifiers of the form "<image_id>_box_<index>".
package boxid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Separator joins the image id and the box index.
const Separator = "_box_"

// ErrMalformed is returned when a box id has no separator or a bad index.
var ErrMalformed = errors.New("malformed box id")

// Format returns the identifier of box number index on image imageID.
func Format(imageID string, index int) string {
	return imageID + Separator + strconv.Itoa(index)
}

// Parse splits a box id on the last separator. An image id that itself
// contains the separator cannot be recovered; see ContainsSeparator.
func Parse(boxID string) (imageID string, index int, err error) {
	pos := strings.LastIndex(boxID, Separator)
	if pos < 0 {
		return "", 0, fmt.Errorf("%w: %q has no %q", ErrMalformed, boxID, Separator)
	}

	tail := boxID[pos+len(Separator):]
	if tail == "" || strings.TrimLeft(tail, "0123456789") != "" {
		return "", 0, fmt.Errorf("%w: %q has a non-numeric index", ErrMalformed, boxID)
	}
	index, err = strconv.Atoi(tail)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q: %v", ErrMalformed, boxID, err)
	}

	return boxID[:pos], index, nil
}

// ContainsSeparator reports whether ids built from imageID would not round-trip.
func ContainsSeparator(imageID string) bool {
	return strings.Contains(imageID, Separator)
}
