// Package syndication は記事一覧をAtom 1.0フィードとして出力する。
package syndication

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hitoshi/holograma/internal/article"
)

// DefaultEntryLimit はフィードに含める記事数。
const DefaultEntryLimit = 20

// ContentType はAtomフィードのContent-Type。
const ContentType = "application/atom+xml; charset=utf-8"

const atomNS = "http://www.w3.org/2005/Atom"

// Feed はAtomのfeed要素。
type Feed struct {
	XMLName xml.Name `xml:"feed"`
	NS      string   `xml:"xmlns,attr"`
	ID      string   `xml:"id"`
	Title   string   `xml:"title"`
	Updated string   `xml:"updated"`
	Links   []Link   `xml:"link"`
	Entries []Entry  `xml:"entry"`
}

// Link はAtomのlink要素。
type Link struct {
	Rel  string `xml:"rel,attr,omitempty"`
	Type string `xml:"type,attr,omitempty"`
	Href string `xml:"href,attr"`
}

// Person はAtomのauthor要素。
type Person struct {
	Name string `xml:"name"`
}

// Text はtype属性付きのテキスト要素。
type Text struct {
	Type string `xml:"type,attr,omitempty"`
	Body string `xml:",chardata"`
}

// Entry はAtomのentry要素。
type Entry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Updated   string `xml:"updated"`
	Published string `xml:"published"`
	Author    Person `xml:"author"`
	Links     []Link `xml:"link"`
	Summary   *Text  `xml:"summary,omitempty"`
	Content   *Text  `xml:"content,omitempty"`
}

// BuildFeed は記事一覧からAtomフィードを組み立てる。
// 記事がない場合のfeedのupdatedにはnowを使う。
func BuildFeed(title, baseURL string, articles []article.View, now time.Time) *Feed {
	baseURL = strings.TrimRight(baseURL, "/")

	f := &Feed{
		NS:    atomNS,
		ID:    baseURL + "/",
		Title: title,
		Links: []Link{
			{Rel: "self", Type: "application/atom+xml", Href: baseURL + "/feed.atom"},
			{Rel: "alternate", Type: "text/html", Href: baseURL + "/"},
		},
		Entries: make([]Entry, 0, len(articles)),
	}

	var latest time.Time
	for _, a := range articles {
		updated := a.UpdatedAt
		if updated.IsZero() {
			updated = a.CreatedAt
		}
		if updated.After(latest) {
			latest = updated
		}
		f.Entries = append(f.Entries, buildEntry(baseURL, a, updated))
	}
	if latest.IsZero() {
		latest = now
	}
	f.Updated = formatTime(latest)

	return f
}

func buildEntry(baseURL string, a article.View, updated time.Time) Entry {
	permalink := fmt.Sprintf("%s/articles/%d", baseURL, a.ID)

	title := a.Title
	if a.Artist != "" {
		title = a.Title + " / " + a.Artist
	}

	e := Entry{
		ID:        permalink,
		Title:     title,
		Updated:   formatTime(updated),
		Published: formatTime(a.CreatedAt),
		Author:    Person{Name: a.AuthorUID},
		Links:     []Link{{Rel: "alternate", Type: "text/html", Href: permalink}},
	}
	for _, m := range a.Media {
		e.Links = append(e.Links, Link{Rel: "enclosure", Href: m.URL})
	}
	if excerpt := Excerpt(a.Content, defaultExcerptRunes); excerpt != "" {
		e.Summary = &Text{Type: "text", Body: excerpt}
	}
	if a.Content != "" {
		e.Content = &Text{Type: "html", Body: a.Content}
	}
	return e
}

// Write はフィードをXML宣言付きでwに書き出す。
func (f *Feed) Write(w io.Writer) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("failed to encode atom feed: %w", err)
	}
	return enc.Flush()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
