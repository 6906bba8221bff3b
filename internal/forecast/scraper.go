package forecast

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/fpailes/Avy-weather-server/internal/common"
	"github.com/fpailes/Avy-weather-server/internal/render"
)

// Scraper obtains rendered markup for a zone's forecast page and parses it
// into a Record. It performs no retries of its own; transport-level
// resilience lives in the Renderer, and the next cache refresh is the retry
// mechanism for everything else.
type Scraper struct {
	renderer render.Renderer
	baseURL  string
}

// NewScraper creates a Scraper fetching pages from baseURL through renderer.
func NewScraper(renderer render.Renderer, baseURL string) *Scraper {
	return &Scraper{
		renderer: renderer,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// Fetch scrapes the forecast for one zone. Failures are classified as
// ErrRenderUnavailable (no markup obtained) or ErrParseFailure (markup
// obtained but the expected structure was missing).
func (s *Scraper) Fetch(ctx context.Context, zone ZoneID) (*Record, error) {
	url := fmt.Sprintf("%s/avalanche-forecast/#%s", s.baseURL, zone)

	markup, err := s.renderer.Render(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: zone %s: %v", ErrRenderUnavailable, zone, err)
	}

	rec, err := parseForecast(zone, markup)
	if err != nil {
		return nil, err
	}
	rec.FetchedAt = time.Now().UTC()
	return rec, nil
}

// bandMarker ties an elevation band to the heading text the source uses for
// it. Ratings are located by these markers rather than by position in the
// document.
type bandMarker struct {
	band    ElevationBand
	label   string
	pattern *regexp.Regexp
}

// The source renders each rating as "<ordinal> - <Label>" somewhere after the
// band heading, e.g. "Upper Elevations ... 2 - Moderate".
func newBandMarker(band ElevationBand, label string) bandMarker {
	return bandMarker{
		band:    band,
		label:   label,
		pattern: regexp.MustCompile(`(?is)` + label + `.*?([1-5])\s*-\s*(Low|Moderate|Considerable|High|Extreme)`),
	}
}

var bandMarkers = []bandMarker{
	newBandMarker(AboveTreeline, "Upper Elevations"),
	newBandMarker(NearTreeline, "Middle Elevations"),
	newBandMarker(BelowTreeline, "Lower Elevations"),
}

var summaryBoilerplate = []string{
	"The bottom line:",
	"Bottom line:",
}

// parseForecast extracts a Record from rendered markup. Every required field
// must be present; a missing band rating or empty summary fails the whole
// parse rather than producing a partial Record.
func parseForecast(zone ZoneID, markup string) (*Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, parseErr(zone, "document", err.Error())
	}

	// Locate the zone's section by its stable data attribute. Pages rendered
	// for a single zone carry no section wrapper, so fall back to the whole
	// document in that case.
	section := doc.Find(fmt.Sprintf("section[data-zone=%q]", string(zone)))
	if section.Length() == 0 {
		section = doc.Selection
	}
	text := section.Text()

	ratings := make(map[ElevationBand]DangerLevel, len(bandMarkers))
	for _, m := range bandMarkers {
		matches := m.pattern.FindStringSubmatch(text)
		if matches == nil {
			return nil, parseErr(zone, m.label, "no danger rating found")
		}
		level, ok := ParseDangerLevel(matches[2])
		if !ok {
			return nil, parseErr(zone, m.label, fmt.Sprintf("unrecognized danger level %q", matches[2]))
		}
		ratings[m.band] = level
	}

	summary := common.CollapseWhitespace(section.Find(".bottom-line").First().Text())
	summary = common.TrimAnyPrefix(summary, summaryBoilerplate...)
	if summary == "" {
		return nil, parseErr(zone, ".bottom-line", "missing or empty summary")
	}

	return &Record{
		Zone:     zone,
		Ratings:  ratings,
		Summary:  summary,
		IssuedAt: parseIssuedAt(section),
	}, nil
}

// Layouts the source has been seen using for its "ISSUED" timestamp.
var issuedLayouts = []string{
	"January 2, 2006 3:04 PM MST",
	"January 2, 2006",
	time.RFC3339,
}

// parseIssuedAt recovers the source's own publication timestamp. The field is
// optional: an unrecognized or missing timestamp yields the zero time, never
// a parse failure.
func parseIssuedAt(section *goquery.Selection) time.Time {
	raw := common.CollapseWhitespace(section.Find(".forecast-issued").First().Text())
	raw = common.TrimAnyPrefix(raw, "ISSUED:", "ISSUED")
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range issuedLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}
