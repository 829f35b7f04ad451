package sanitizer

import (
	"net/url"

	"golang.org/x/net/html"
)

// MediaRef is a non-text asset reference found while sanitizing, kept
// alongside discovered link URLs so buildDoc can populate
// model.ExtractedDoc.Media() without a second DOM walk.
type MediaRef struct {
	URL  string
	Kind string
}

type SanitizedHTMLDoc struct {
	contentNode     *html.Node
	discoveredUrls  []url.URL
	discoveredMedia []MediaRef
}

// NewSanitizedHTMLDoc constructs a SanitizedHTMLDoc directly from an
// already-cleaned content node. Production callers go through
// HtmlSanitizer.Sanitize; this constructor exists so downstream stages
// (mdconvert) can be tested against hand-built content nodes.
func NewSanitizedHTMLDoc(contentNode *html.Node, discoveredUrls []url.URL) SanitizedHTMLDoc {
	return SanitizedHTMLDoc{contentNode: contentNode, discoveredUrls: discoveredUrls}
}

// RepairableResult is isRepairable's verdict: either the document can be
// normalized, or the specific invariant that blocks it.
type RepairableResult struct {
	Repairable bool
	Reason     UnrepairabilityReason
}

// headingInfo is the flattened view of one h1-h6 node used by the
// repairability checks.
type headingInfo struct {
	level int
	node  *html.Node
	text  string
}

// GetContentNode returns the repaired document root that survived
// sanitization, for callers (mdconvert) that walk the DOM directly.
func (s *SanitizedHTMLDoc) GetContentNode() *html.Node {
	return s.contentNode
}

func (s *SanitizedHTMLDoc) GetDiscoveredURLs() []url.URL {
	return s.discoveredUrls
}

// GetDiscoveredMedia returns the img/video/audio src references found
// in the sanitized document, in document order.
func (s *SanitizedHTMLDoc) GetDiscoveredMedia() []MediaRef {
	return s.discoveredMedia
}
