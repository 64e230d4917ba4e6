package export

import (
	"time"

	"golang.org/x/text/language"
)

// DateFormatter renders submission timestamps for a locale and time zone.
type DateFormatter struct {
	Tag        language.Tag
	Layout     string
	DateLayout string
	TimeLayout string
	Location   *time.Location
}

// Date and time layouts per supported locale, mirroring what browsers print
// for toLocaleDateString() and toLocaleTimeString(). toLocaleString() joins
// them with sep.
var localeLayouts = []struct {
	tag        language.Tag
	day, clock string
	sep        string
}{
	{language.AmericanEnglish, "1/2/2006", "3:04:05 PM", ", "},
	{language.BritishEnglish, "02/01/2006", "15:04:05", ", "},
	{language.German, "2.1.2006", "15:04:05", ", "},
	{language.French, "02/01/2006", "15:04:05", " "},
	{language.Spanish, "2/1/2006", "15:04:05", ", "},
	{language.Portuguese, "02/01/2006", "15:04:05", ", "},
	{language.Japanese, "2006/1/2", "15:04:05", " "},
	{language.Russian, "02.01.2006", "15:04:05", ", "},
}

var localeMatcher = func() language.Matcher {
	tags := make([]language.Tag, len(localeLayouts))
	for i, l := range localeLayouts {
		tags[i] = l.tag
	}
	return language.NewMatcher(tags)
}()

// NewDateFormatter picks the closest supported locale for locale (a BCP 47
// tag or Accept-Language value) and renders times in loc. Unknown or empty
// locales fall back to en-US; a nil loc means UTC.
func NewDateFormatter(locale string, loc *time.Location) DateFormatter {
	if loc == nil {
		loc = time.UTC
	}
	tags, _, err := language.ParseAcceptLanguage(locale)
	if err != nil || len(tags) == 0 {
		tags = []language.Tag{language.AmericanEnglish}
	}
	_, idx, _ := localeMatcher.Match(tags...)
	l := localeLayouts[idx]
	return DateFormatter{
		Tag:        l.tag,
		Layout:     l.day + l.sep + l.clock,
		DateLayout: l.day,
		TimeLayout: l.clock,
		Location:   loc,
	}
}

// Format renders date and time together.
func (f DateFormatter) Format(t time.Time) string {
	return t.In(f.Location).Format(f.Layout)
}

func (f DateFormatter) FormatDate(t time.Time) string {
	return t.In(f.Location).Format(f.DateLayout)
}

func (f DateFormatter) FormatTime(t time.Time) string {
	return t.In(f.Location).Format(f.TimeLayout)
}
