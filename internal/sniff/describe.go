package sniff

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"github.com/gabriel-vasile/mimetype"
)

var titleExpr = xpath.MustCompile("//title")

// Description is a best-effort account of a payload that could not be turned
// into a table. It is for logs and error messages only.
type Description struct {
	MIME string
	// Legacy is set for pre-zip binary workbooks, which are not supported.
	Legacy bool
	// Title is the <title> of an HTML payload, typically a block page.
	Title string
}

func (d Description) String() string {
	var b strings.Builder
	b.WriteString(d.MIME)
	if d.Legacy {
		b.WriteString(", legacy binary workbook")
	}
	if d.Title != "" {
		fmt.Fprintf(&b, ", title %q", d.Title)
	}
	return b.String()
}

// Describe detects what b looks like.
func Describe(b []byte) Description {
	m := mimetype.Detect(b)
	d := Description{MIME: m.String()}

	for ; m != nil; m = m.Parent() {
		switch {
		case m.Is("application/vnd.ms-excel"), m.Is("application/x-ole-storage"):
			d.Legacy = true
		case m.Is("text/html"):
			d.Title = htmlTitle(b)
		}
	}
	return d
}

func htmlTitle(b []byte) string {
	doc, err := htmlquery.Parse(bytes.NewReader(b))
	if err != nil {
		return ""
	}
	node := htmlquery.QuerySelector(doc, titleExpr)
	if node == nil {
		return ""
	}
	return strings.TrimSpace(htmlquery.InnerText(node))
}
