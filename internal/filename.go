package internal

import (
	"regexp"
	"strconv"
	"time"
)

// Matcher parses a capture time out of a file name that has had its
// extension removed. A name the matcher does not recognise yields false.
type Matcher struct {
	Name  string
	Match func(name string) (time.Time, bool)
}

const (
	layoutDateTime       = "20060102_150405"
	layoutDateTimeHyphen = "2006-01-02_15-04-05"
	layoutCompact        = "20060102150405"
)

var (
	shapeDigits         = regexp.MustCompile(`^\d+$`)
	shapeDateTime       = regexp.MustCompile(`^\d{8}_\d{6}$`)
	shapeDateTimeHyphen = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}$`)
	shapeDateTimeMillis = regexp.MustCompile(`^\d{8}_\d{9}$`)
	shapeCompact        = regexp.MustCompile(`^\d{14}$`)
)

// DefaultMatchers returns the filename matchers in the order they have to be
// tried. Several vendor names reduce to a plain date_time shape once their
// markers are gone, so the order is part of the contract.
func DefaultMatchers() []Matcher {
	return []Matcher{
		{Name: "epoch-millis", Match: matchEpochMillis},
		layoutMatcher("date_time", layoutDateTime, shapeDateTime),
		layoutMatcher("img_date_time", layoutDateTime, shapeDateTime, literal("IMG_")),
		layoutMatcher("date-time", layoutDateTimeHyphen, shapeDateTimeHyphen),
		layoutMatcher("screenshot_date-time", layoutDateTimeHyphen, shapeDateTimeHyphen, literal("Screenshot_")),
		millisMatcher("date_time_ios", literal("_iOS")),
		millisMatcher("pxl_date_time", literal("PXL_")),
		millisMatcher("date_time-collage", literal("-COLLAGE")),
		layoutMatcher("indexed-burst", layoutCompact, shapeCompact,
			pattern(`\d{5}(IMG|XTR)_\d{5}_BURST`), literal("_COVER")),
		layoutMatcher("burst-action", layoutCompact, shapeCompact, literal("Burst_Cover_GIF_Action_")),
		layoutMatcher("burst-collage", layoutCompact, shapeCompact, literal("Burst_Cover_Collage_")),
		{Name: "whatsapp", Match: matchWhatsApp},
	}
}

// stripper removes a vendor marker from a name, or returns it unchanged.
type stripper func(string) string

// pattern removes the first case-insensitive match of expr.
func pattern(expr string) stripper {
	re := regexp.MustCompile("(?i)" + expr)
	return func(s string) string {
		loc := re.FindStringIndex(s)
		if loc == nil {
			return s
		}
		return s[:loc[0]] + s[loc[1]:]
	}
}

func literal(marker string) stripper {
	return pattern(regexp.QuoteMeta(marker))
}

func strip(name string, strips []stripper) string {
	for _, s := range strips {
		name = s(name)
	}
	return name
}

func layoutMatcher(name, layout string, shape *regexp.Regexp, strips ...stripper) Matcher {
	return Matcher{
		Name: name,
		Match: func(s string) (time.Time, bool) {
			s = strip(s, strips)
			if !shape.MatchString(s) {
				return time.Time{}, false
			}
			t, err := time.Parse(layout, s)
			if err != nil {
				return time.Time{}, false
			}
			return t, true
		},
	}
}

// millisMatcher handles yyyyMMdd_HHmmssSSS, which time.Parse cannot read
// because the fraction has no separator.
func millisMatcher(name string, strips ...stripper) Matcher {
	return Matcher{
		Name: name,
		Match: func(s string) (time.Time, bool) {
			s = strip(s, strips)
			if !shapeDateTimeMillis.MatchString(s) {
				return time.Time{}, false
			}
			t, err := time.Parse(layoutDateTime, s[:15])
			if err != nil {
				return time.Time{}, false
			}
			ms, err := strconv.Atoi(s[15:])
			if err != nil {
				return time.Time{}, false
			}
			return t.Add(time.Duration(ms) * time.Millisecond), true
		},
	}
}

func matchEpochMillis(s string) (time.Time, bool) {
	if !shapeDigits.MatchString(s) {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}

var (
	stripWhatsAppPrefix = literal("IMG-")
	stripWhatsAppSuffix = pattern(`-WA\d+`)
)

// matchWhatsApp reads IMG-yyyyMMdd-WAnnnn. The name carries no time of day.
func matchWhatsApp(s string) (time.Time, bool) {
	s = strip(s, []stripper{stripWhatsAppPrefix, stripWhatsAppSuffix}) + "000000"
	if !shapeCompact.MatchString(s) {
		return time.Time{}, false
	}
	t, err := time.Parse(layoutCompact, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
