package internal

import (
	"errors"
	"time"
)

// ErrInvalidDate is matched by every InvalidDateError.
var ErrInvalidDate = errors.New("invalid date")

// InvalidDateError reports a file for which neither metadata nor any
// filename matcher produced a timestamp.
type InvalidDateError struct {
	Name string
}

func (e *InvalidDateError) Error() string {
	return "could not get a timestamp for the file " + e.Name
}

func (e *InvalidDateError) Is(target error) bool {
	return target == ErrInvalidDate
}

// Resolution is the capture time chosen for a file and the strategy that
// produced it ("metadata:exif", "filename:pxl_date_time", ...).
type Resolution struct {
	Time   time.Time
	Source string
}

// Resolver walks the date cascade: embedded metadata first, then each
// filename matcher in order. It holds no mutable state and may be shared
// between goroutines.
type Resolver struct {
	probe    MetadataProbe
	matchers []Matcher
}

// NewResolver builds a resolver. A nil probe skips the metadata step.
func NewResolver(probe MetadataProbe, matchers []Matcher) *Resolver {
	m := make([]Matcher, len(matchers))
	copy(m, matchers)
	return &Resolver{probe: probe, matchers: m}
}

// Resolve returns the capture time of file in UTC. It fails with an
// InvalidDateError when no strategy applies, or with a ProbeError when the
// file cannot be read.
func (r *Resolver) Resolve(file MediaFile) (Resolution, error) {
	if r.probe != nil {
		t, source, err := r.probe.Probe(file)
		if err != nil {
			return Resolution{}, err
		}
		if !t.IsZero() {
			return Resolution{Time: t.UTC(), Source: source}, nil
		}
	}

	name := file.Name
	if name == "" {
		name = BaseName(file.Path)
	}
	for _, m := range r.matchers {
		if t, ok := m.Match(name); ok {
			return Resolution{Time: t.UTC(), Source: "filename:" + m.Name}, nil
		}
	}
	return Resolution{}, &InvalidDateError{Name: name}
}
