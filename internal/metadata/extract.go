// file: internal/metadata/extract.go
// version: 1.0.0
// guid: ebd2c1d4-10da-4091-939a-4685942ad912

package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jdfalk/bookmeta/internal/matcher"
	"github.com/jdfalk/bookmeta/internal/models"
	"github.com/jdfalk/bookmeta/internal/scrape"
)

var errNoPayload = errors.New("no embedded payload")

// flexNumber decodes a JSON number that some pages emit as a string.
type flexNumber float64

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(bytes.TrimSpace(b), `"`)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(string(b), ",", ""), 64)
	if err != nil {
		return nil
	}
	*f = flexNumber(v)
	return nil
}

// stripHTML returns the text content of an HTML fragment.
func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := scrape.ParseString(s)
	if err != nil {
		return strings.TrimSpace(s)
	}
	return doc.Text()
}

type apolloRef struct {
	Ref string `json:"__ref"`
}

type apolloBook struct {
	Typename               string     `json:"__typename"`
	LegacyID               flexNumber `json:"legacyId"`
	Title                  string     `json:"title"`
	TitleComplete          string     `json:"titleComplete"`
	Description            string     `json:"description"`
	ImageURL               string     `json:"imageUrl"`
	WebURL                 string     `json:"webUrl"`
	PrimaryContributorEdge *struct {
		Node apolloRef `json:"node"`
	} `json:"primaryContributorEdge"`
	BookSeries []struct {
		UserPosition string    `json:"userPosition"`
		Series       apolloRef `json:"series"`
	} `json:"bookSeries"`
	BookGenres []struct {
		Genre struct {
			Name string `json:"name"`
		} `json:"genre"`
	} `json:"bookGenres"`
	Details *struct {
		NumPages        int         `json:"numPages"`
		PublicationTime *flexNumber `json:"publicationTime"`
		Publisher       string      `json:"publisher"`
		ISBN            string      `json:"isbn"`
		ISBN13          string      `json:"isbn13"`
		Format          string      `json:"format"`
	} `json:"details"`
	Work *apolloRef `json:"work"`
}

type apolloEntity struct {
	Typename string `json:"__typename"`
	Name     string `json:"name"`
	Title    string `json:"title"`
	Stats    *struct {
		AverageRating flexNumber `json:"averageRating"`
	} `json:"stats"`
}

type nextData struct {
	Props struct {
		PageProps struct {
			ApolloState map[string]json.RawMessage `json:"apolloState"`
		} `json:"pageProps"`
	} `json:"props"`
}

// NextDataExtractor reads the Apollo cache embedded in a Next.js page.
func NextDataExtractor(doc *scrape.Document) Extractor {
	return Extractor{Name: "next-data", Extract: func(*models.Record) (*models.Record, error) {
		scripts := doc.Scripts("script#__NEXT_DATA__")
		if len(scripts) == 0 {
			return nil, errNoPayload
		}
		var nd nextData
		if err := json.Unmarshal([]byte(scripts[0]), &nd); err != nil {
			return nil, fmt.Errorf("failed to decode next data: %w", err)
		}
		state := nd.Props.PageProps.ApolloState
		if len(state) == 0 {
			return nil, errNoPayload
		}
		book, ok := findApolloBook(state)
		if !ok {
			return nil, errNoPayload
		}
		return book.toRecord(state), nil
	}}
}

func findApolloBook(state map[string]json.RawMessage) (*apolloBook, bool) {
	keys := make([]string, 0, len(state))
	for k := range state {
		if strings.HasPrefix(k, "Book:") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		var b apolloBook
		if err := json.Unmarshal(state[k], &b); err != nil {
			continue
		}
		if b.Title != "" {
			return &b, true
		}
	}
	return nil, false
}

func resolveRef(state map[string]json.RawMessage, ref string) *apolloEntity {
	raw, ok := state[ref]
	if !ok {
		return nil
	}
	var e apolloEntity
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil
	}
	return &e
}

func (b *apolloBook) toRecord(state map[string]json.RawMessage) *models.Record {
	rec := &models.Record{
		Title:       models.String(strings.TrimSpace(b.Title)),
		Description: models.StringOrNil(stripHTML(b.Description)),
		CoverURL:    models.StringOrNil(b.ImageURL),
		SourceURL:   models.StringOrNil(b.WebURL),
	}
	if b.LegacyID > 0 {
		rec.APIID = models.String(strconv.FormatInt(int64(b.LegacyID), 10))
	}
	if b.PrimaryContributorEdge != nil {
		if c := resolveRef(state, b.PrimaryContributorEdge.Node.Ref); c != nil && c.Name != "" {
			rec.Authors = []string{c.Name}
		}
	}
	if len(b.BookSeries) > 0 {
		if s := resolveRef(state, b.BookSeries[0].Series.Ref); s != nil && s.Title != "" {
			rec.Series = &models.Series{Name: s.Title}
			if pos, err := strconv.ParseFloat(b.BookSeries[0].UserPosition, 64); err == nil {
				rec.Series.Position = models.Float64(pos)
			}
		}
	}
	for _, g := range b.BookGenres {
		if g.Genre.Name != "" {
			rec.Genres = append(rec.Genres, g.Genre.Name)
		}
	}
	if d := b.Details; d != nil {
		if d.NumPages > 0 {
			rec.PageCount = models.Int(d.NumPages)
		}
		if d.PublicationTime != nil {
			rec.ReleaseDate = models.String(time.UnixMilli(int64(*d.PublicationTime)).UTC().Format("2006-01-02"))
		}
		rec.Publisher = models.StringOrNil(d.Publisher)
		setISBN(rec, d.ISBN13)
		setISBN(rec, d.ISBN)
		if f := formatFromBinding(d.Format); f != "" {
			rec.Format = models.String(f)
		}
	}
	if b.Work != nil {
		if w := resolveRef(state, b.Work.Ref); w != nil && w.Stats != nil && w.Stats.AverageRating > 0 {
			rec.Rating = models.Float64(float64(w.Stats.AverageRating))
		}
	}
	return rec
}

type ldPerson struct {
	Name string `json:"name"`
}

type ldBook struct {
	Type            any               `json:"@type"`
	Graph           []json.RawMessage `json:"@graph"`
	Name            string            `json:"name"`
	Image           string            `json:"image"`
	Description     string            `json:"description"`
	BookFormat      string            `json:"bookFormat"`
	NumberOfPages   flexNumber        `json:"numberOfPages"`
	ISBN            string            `json:"isbn"`
	Author          json.RawMessage   `json:"author"`
	AggregateRating *struct {
		RatingValue flexNumber `json:"ratingValue"`
	} `json:"aggregateRating"`
}

func (b *ldBook) isBook() bool {
	switch t := b.Type.(type) {
	case string:
		return t == "Book"
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && s == "Book" {
				return true
			}
		}
	}
	return false
}

func (b *ldBook) authors() []string {
	if len(b.Author) == 0 {
		return nil
	}
	var one ldPerson
	if err := json.Unmarshal(b.Author, &one); err == nil && one.Name != "" {
		return []string{strings.TrimSpace(one.Name)}
	}
	var many []ldPerson
	if err := json.Unmarshal(b.Author, &many); err != nil {
		return nil
	}
	var out []string
	for _, p := range many {
		if n := strings.TrimSpace(p.Name); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// JSONLDExtractor reads the first schema.org Book block of a page.
func JSONLDExtractor(doc *scrape.Document) Extractor {
	return Extractor{Name: "json-ld", Extract: func(*models.Record) (*models.Record, error) {
		for _, body := range doc.Scripts("script[type='application/ld+json']") {
			if book := findLDBook([]byte(body)); book != nil {
				return book.toRecord(), nil
			}
		}
		return nil, errNoPayload
	}}
}

func findLDBook(raw []byte) *ldBook {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil
		}
		for _, item := range list {
			if b := findLDBook(item); b != nil {
				return b
			}
		}
		return nil
	}
	var b ldBook
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil
	}
	if b.isBook() {
		return &b
	}
	for _, item := range b.Graph {
		if g := findLDBook(item); g != nil {
			return g
		}
	}
	return nil
}

func (b *ldBook) toRecord() *models.Record {
	rec := &models.Record{
		Title:       models.StringOrNil(strings.TrimSpace(b.Name)),
		Authors:     b.authors(),
		CoverURL:    models.StringOrNil(b.Image),
		Description: models.StringOrNil(stripHTML(b.Description)),
	}
	if b.NumberOfPages > 0 {
		rec.PageCount = models.Int(int(b.NumberOfPages))
	}
	if b.AggregateRating != nil && b.AggregateRating.RatingValue > 0 {
		rec.Rating = models.Float64(float64(b.AggregateRating.RatingValue))
	}
	if f := formatFromBinding(b.BookFormat); f != "" {
		rec.Format = models.String(f)
	}
	setISBN(rec, b.ISBN)
	return rec
}

var (
	firstIntRe   = regexp.MustCompile(`\d[\d,]*`)
	firstFloatRe = regexp.MustCompile(`\d+(?:\.\d+)?`)
	publishedRe  = regexp.MustCompile(`(?i)^(?:first\s+)?published\s+`)
	seriesPosRe  = regexp.MustCompile(`^(.*?)\s*#\s*(\d+(?:\.\d+)?)\s*$`)
)

// SelectorExtractor reads fields from the page markup using a site's
// selector catalog entry.
func SelectorExtractor(doc *scrape.Document, site scrape.SiteSelectors) Extractor {
	return Extractor{Name: "selectors", Extract: func(*models.Record) (*models.Record, error) {
		rec := &models.Record{}
		if v, ok := doc.FindFirst(site["title"]); ok {
			rec.Title = models.String(v)
		}
		for _, n := range doc.FindAll(site["author"], 0) {
			if name := n.Text(); name != "" && !contains(rec.Authors, name) {
				rec.Authors = append(rec.Authors, name)
			}
		}
		if v, ok := doc.FindFirst(site["description"]); ok {
			rec.Description = models.String(v)
		}
		if v, ok := doc.FindFirst(site["cover"]); ok {
			rec.CoverURL = models.String(v)
		}
		if v, ok := doc.FindFirst(site["pages"]); ok {
			if m := firstIntRe.FindString(v); m != "" {
				if n, err := strconv.Atoi(strings.ReplaceAll(m, ",", "")); err == nil && n > 0 {
					rec.PageCount = models.Int(n)
				}
			}
		}
		if v, ok := doc.FindFirst(site["rating"]); ok {
			if f, err := strconv.ParseFloat(firstFloatRe.FindString(v), 64); err == nil && f > 0 {
				rec.Rating = models.Float64(f)
			}
		}
		for _, n := range doc.FindAll(site["genres"], 0) {
			if g := n.Text(); g != "" && !contains(rec.Genres, g) {
				rec.Genres = append(rec.Genres, g)
			}
		}
		if v, ok := doc.FindFirst(site["publication"]); ok {
			rec.ReleaseDate = models.String(publishedRe.ReplaceAllString(v, ""))
		}
		if v, ok := doc.FindFirst(site["series"]); ok {
			rec.Series = parseSeriesLabel(v)
		}
		if rec.Title == nil {
			return nil, fmt.Errorf("no title matched")
		}
		return rec, nil
	}}
}

// SeriesFromTitleExtractor splits a "Title (Series, #N)" style title.
func SeriesFromTitleExtractor() Extractor {
	return Extractor{Name: "title-series", Extract: func(current *models.Record) (*models.Record, error) {
		if current.Series != nil || current.Title == nil {
			return nil, nil
		}
		_, series := matcher.SplitSeries(*current.Title)
		if series == nil {
			return nil, nil
		}
		return &models.Record{Series: series}, nil
	}}
}

func parseSeriesLabel(s string) *models.Series {
	s = strings.Trim(strings.TrimSpace(s), "()")
	if s == "" {
		return nil
	}
	if m := seriesPosRe.FindStringSubmatch(s); m != nil {
		series := &models.Series{Name: strings.TrimRight(strings.TrimSpace(m[1]), ",")}
		if pos, err := strconv.ParseFloat(m[2], 64); err == nil {
			series.Position = models.Float64(pos)
		}
		return series
	}
	return &models.Series{Name: s}
}

func formatFromBinding(binding string) string {
	b := strings.ToLower(binding)
	switch {
	case b == "":
		return ""
	case strings.Contains(b, "audio"):
		return models.FormatAudio
	case strings.Contains(b, "kindle"), strings.Contains(b, "ebook"), strings.Contains(b, "e-book"):
		return models.FormatEbook
	default:
		return models.FormatPhysical
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
