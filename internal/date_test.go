package internal

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type fakeProbe struct {
	t      time.Time
	source string
	err    error
	calls  int
	mu     sync.Mutex
}

func (p *fakeProbe) Probe(MediaFile) (time.Time, string, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.t, p.source, p.err
}

func TestResolve_Scenarios(t *testing.T) {
	r := NewResolver(&fakeProbe{}, DefaultMatchers())

	tests := []struct {
		name string
		want time.Time
	}{
		{"3661100", utc(1970, 1, 1, 1, 1, 1, 100)},
		{"19700101_010101", utc(1970, 1, 1, 1, 1, 1, 0)},
		{"IMG_19700101_010101", utc(1970, 1, 1, 1, 1, 1, 0)},
		{"PXL_20221227_152002772", utc(2022, 12, 27, 15, 20, 2, 772)},
		{"00000IMG_00000_BURST20170430172516_COVER", utc(2017, 4, 30, 17, 25, 16, 0)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := r.Resolve(MediaFile{Path: "/in/" + tc.name + ".jpg", Name: tc.name})
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if !res.Time.Equal(tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, res.Time)
			}
			if res.Time.Location() != time.UTC {
				t.Errorf("Expected UTC result, got %v", res.Time.Location())
			}
		})
	}
}

func TestResolve_InvalidDate(t *testing.T) {
	r := NewResolver(&fakeProbe{}, DefaultMatchers())

	_, err := r.Resolve(NewMediaFile("/in/file.jpg"))
	if err == nil {
		t.Fatal("Expected an error")
	}
	if !errors.Is(err, ErrInvalidDate) {
		t.Errorf("Expected ErrInvalidDate, got %v", err)
	}
	var invalid *InvalidDateError
	if !errors.As(err, &invalid) || invalid.Name != "file" {
		t.Errorf("Expected InvalidDateError for file, got %v", err)
	}
	if err.Error() != "could not get a timestamp for the file file" {
		t.Errorf("Unexpected message: %q", err.Error())
	}
}

func TestResolve_MetadataWins(t *testing.T) {
	taken := time.Date(2010, 5, 6, 7, 8, 9, 0, time.FixedZone("CEST", 2*3600))
	probe := &fakeProbe{t: taken, source: "metadata:exif"}
	r := NewResolver(probe, DefaultMatchers())

	res, err := r.Resolve(NewMediaFile("/in/PXL_20221227_152002772.jpg"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !res.Time.Equal(taken) {
		t.Errorf("Expected metadata time %v, got %v", taken, res.Time)
	}
	if res.Time.Location() != time.UTC {
		t.Errorf("Expected UTC result, got %v", res.Time.Location())
	}
	if res.Source != "metadata:exif" {
		t.Errorf("Expected source metadata:exif, got %s", res.Source)
	}
}

func TestResolve_SourceNamesMatcher(t *testing.T) {
	r := NewResolver(&fakeProbe{}, DefaultMatchers())
	res, err := r.Resolve(NewMediaFile("/in/Screenshot_2015-02-18_13-13-13.png"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Source != "filename:screenshot_date-time" {
		t.Errorf("Expected filename:screenshot_date-time, got %s", res.Source)
	}
}

func TestResolve_ProbeError(t *testing.T) {
	probeErr := &ProbeError{Path: "/in/x.jpg", Err: errors.New("permission denied")}
	r := NewResolver(&fakeProbe{err: probeErr}, DefaultMatchers())

	_, err := r.Resolve(NewMediaFile("/in/20150215_102030.jpg"))
	if !errors.Is(err, probeErr) {
		t.Errorf("Expected the probe error, got %v", err)
	}
	if errors.Is(err, ErrInvalidDate) {
		t.Error("A read failure is not an invalid date")
	}
}

func TestResolve_NilProbe(t *testing.T) {
	r := NewResolver(nil, DefaultMatchers())
	res, err := r.Resolve(MediaFile{Path: filepath.Join("in", "20150215_102030.jpg")})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !res.Time.Equal(utc(2015, 2, 15, 10, 20, 30, 0)) {
		t.Errorf("Expected name from path to be used, got %v", res.Time)
	}
}

func TestResolve_CustomMatchers(t *testing.T) {
	called := false
	matchers := []Matcher{{Name: "always", Match: func(string) (time.Time, bool) {
		called = true
		return utc(2001, 1, 1, 0, 0, 0, 0), true
	}}}
	r := NewResolver(nil, matchers)
	matchers[0] = Matcher{Name: "replaced"}

	res, err := r.Resolve(NewMediaFile("anything.jpg"))
	if err != nil || !called || res.Source != "filename:always" {
		t.Errorf("Expected resolver to keep its own copy of the matchers, got %+v, %v", res, err)
	}
}

func TestResolve_Idempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "holiday.jpg")
	writeJPEG(t, path, "2014:03:04 05:06:07", "250")

	r := NewResolver(NewFileProbe(nil, nil), DefaultMatchers())
	first, err := r.Resolve(NewMediaFile(path))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	second, err := r.Resolve(NewMediaFile(path))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if first != second {
		t.Errorf("Expected identical results, got %+v and %+v", first, second)
	}
}

func TestResolve_Concurrent(t *testing.T) {
	r := NewResolver(&fakeProbe{}, DefaultMatchers())
	names := []string{"3661100", "PXL_20221227_152002772", "IMG-20150225-WA0001", "file"}

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_, err := r.Resolve(MediaFile{Name: name})
			if (name == "file") != errors.Is(err, ErrInvalidDate) {
				errs <- err
			}
		}(names[i%len(names)])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Unexpected result: %v", err)
	}
}
