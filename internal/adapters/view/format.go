package view

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// MissingValue is shown in place of an absent timestamp.
const MissingValue = "N/A"

type localeLayout struct {
	tag    language.Tag
	layout string
}

var localeLayouts = []localeLayout{
	{tag: language.AmericanEnglish, layout: "1/2/2006 3:04:05 PM"},
	{tag: language.BritishEnglish, layout: "02/01/2006 15:04:05"},
	{tag: language.German, layout: "2.1.2006 15:04:05"},
	{tag: language.French, layout: "02/01/2006 15:04:05"},
	{tag: language.Russian, layout: "02.01.2006 15:04:05"},
}

const fallbackLayout = "2006-01-02 15:04:05"

var localeMatcher = func() language.Matcher {
	tags := make([]language.Tag, 0, len(localeLayouts))
	for _, l := range localeLayouts {
		tags = append(tags, l.tag)
	}
	return language.NewMatcher(tags)
}()

// Formatter renders timestamps and sizes for one display locale and time zone.
type Formatter struct {
	tag      language.Tag
	layout   string
	location *time.Location
	printer  *message.Printer
}

func NewFormatter(locale, timezone string) (*Formatter, error) {
	loc := time.Local
	if tz := strings.TrimSpace(timezone); tz != "" && !strings.EqualFold(tz, "local") {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("load time zone %q: %w", tz, err)
		}
		loc = parsed
	}

	if strings.TrimSpace(locale) == "" {
		locale = "en-US"
	}
	requested, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", locale, err)
	}
	_, idx, confidence := localeMatcher.Match(requested)
	layout := fallbackLayout
	tag := requested
	if confidence != language.No {
		layout = localeLayouts[idx].layout
		tag = localeLayouts[idx].tag
	}
	return &Formatter{
		tag:      tag,
		layout:   layout,
		location: loc,
		printer:  message.NewPrinter(tag),
	}, nil
}

// DefaultFormatter formats like an en-US browser in UTC.
func DefaultFormatter() *Formatter {
	return &Formatter{
		tag:      language.AmericanEnglish,
		layout:   localeLayouts[0].layout,
		location: time.UTC,
		printer:  message.NewPrinter(language.AmericanEnglish),
	}
}

func (f *Formatter) Locale() string { return f.tag.String() }

func (f *Formatter) Timestamp(ts *time.Time) string {
	if ts == nil || ts.IsZero() {
		return MissingValue
	}
	return ts.In(f.location).Format(f.layout)
}

// FileSize uses bytes below 1 KiB, then KB and MB with one decimal.
func (f *Formatter) FileSize(size int64) string {
	if size < 0 {
		size = 0
	}
	switch {
	case size < 1024:
		return fmt.Sprintf("%d B", size)
	case size < 1024*1024:
		return f.decimal(float64(size)/1024) + " KB"
	default:
		return f.decimal(float64(size)/(1024*1024)) + " MB"
	}
}

func (f *Formatter) decimal(v float64) string {
	return f.printer.Sprint(number.Decimal(v, number.Scale(1), number.NoSeparator()))
}
