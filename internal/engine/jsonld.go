package engine

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StructuredDoc is the object the Gate attaches directly to the pipeline
// result when rule 1 (JSON-LD short-circuit) fires: a complete Article
// or Event schema skips every further extraction method.
type StructuredDoc struct {
	Kind          string // "Article" or "Event"
	Headline      string
	Body          string
	Author        string
	DatePublished string
	Name          string
	StartDate     string
	Location      string
}

// rawLD mirrors the subset of schema.org Article/Event fields the
// completeness check in findCompleteJSONLD cares about. json-ld often
// nests @type inside an array or a single string, and author as either
// a string or an object with a "name" field, so both shapes are
// accepted.
type rawLD struct {
	Type          jsonAny `json:"@type"`
	Headline      string  `json:"headline"`
	ArticleBody   string  `json:"articleBody"`
	Author        jsonAny `json:"author"`
	DatePublished string  `json:"datePublished"`
	Name          string  `json:"name"`
	StartDate     string  `json:"startDate"`
	Location      jsonAny `json:"location"`
}

// jsonAny decodes a JSON value that may be a bare string or an object
// with a "name" field (schema.org's common shorthand for Person/Place),
// collapsing both to a single string.
type jsonAny string

func (j *jsonAny) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*j = jsonAny(s)
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		var arr []string
		if err2 := json.Unmarshal(data, &arr); err2 == nil && len(arr) > 0 {
			*j = jsonAny(arr[0])
			return nil
		}
		return err
	}
	*j = jsonAny(obj.Name)
	return nil
}

// findCompleteJSONLD scans the top of the document for a <script
// type="application/ld+json"> island describing a complete Article
// (headline+body+author+datePublished) or Event (name+startDate+
// location). It returns ok=false if no script
// island parses into a complete object, so the Gate falls through to
// rule 2.
func findCompleteJSONLD(html []byte) (StructuredDoc, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return StructuredDoc{}, false
	}

	var found StructuredDoc
	var ok bool
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var candidate rawLD
		if err := json.Unmarshal([]byte(s.Text()), &candidate); err != nil {
			return true // keep scanning remaining islands
		}
		kind := strings.ToLower(string(candidate.Type))

		if strings.Contains(kind, "article") &&
			candidate.Headline != "" && candidate.ArticleBody != "" &&
			candidate.Author != "" && candidate.DatePublished != "" {
			found = StructuredDoc{
				Kind:          "Article",
				Headline:      candidate.Headline,
				Body:          candidate.ArticleBody,
				Author:        string(candidate.Author),
				DatePublished: candidate.DatePublished,
			}
			ok = true
			return false
		}

		if strings.Contains(kind, "event") &&
			candidate.Name != "" && candidate.StartDate != "" && candidate.Location != "" {
			found = StructuredDoc{
				Kind:      "Event",
				Name:      candidate.Name,
				StartDate: candidate.StartDate,
				Location:  string(candidate.Location),
			}
			ok = true
			return false
		}
		return true
	})

	return found, ok
}
