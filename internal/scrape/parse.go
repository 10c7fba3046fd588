package scrape

import (
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"gradcafe/internal"
	"gradcafe/internal/pipeline"
	"gradcafe/internal/util"
)

var resultIDExpr = regexp.MustCompile(`/result/(\d+)`)

// ResultIDFromURL returns the numeric id of a /result/<id> link.
func ResultIDFromURL(link string) *int64 {
	m := resultIDExpr.FindStringSubmatch(link)
	if len(m) < 2 {
		return nil
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

// ParseListing reads one survey page. Rows without a result link are
// dropped. A following single-cell row is treated as the entry's detail
// row and consumed when it names a term.
func ParseListing(r io.Reader, baseURL string) ([]internal.RawRecord, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	var rows []*goquery.Selection
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.Find("td").Length() > 0 {
			rows = append(rows, tr)
		}
	})

	out := make([]internal.RawRecord, 0, len(rows))
	for i := 0; i < len(rows); i++ {
		rec, ok := listingRecord(rows[i], baseURL)
		if !ok {
			continue
		}

		if i+1 < len(rows) {
			if cells := rows[i+1].Find("td"); cells.Length() == 1 {
				detail := spacedText(cells.Nodes[0])
				if term := pipeline.ExtractTerm(&detail); term != nil {
					rec.TermInferred = term
					i++
				}
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func listingRecord(tr *goquery.Selection, baseURL string) (internal.RawRecord, bool) {
	href, ok := tr.Find(`a[href*="/result/"]`).First().Attr("href")
	if !ok || href == "" {
		return internal.RawRecord{}, false
	}
	if !strings.HasPrefix(href, "http") {
		href = strings.TrimRight(baseURL, "/") + href
	}
	id := ResultIDFromURL(href)
	if id == nil {
		return internal.RawRecord{}, false
	}

	var cells []string
	tr.Find("td").Each(func(_ int, td *goquery.Selection) {
		cells = append(cells, spacedText(td.Nodes[0]))
	})
	cell := func(i int) *string {
		if i < len(cells) {
			return util.StringPtr(cells[i])
		}
		return nil
	}

	return internal.RawRecord{
		ResultID:          id,
		UniversityRaw:     cell(0),
		ProgramRaw:        cell(1),
		DateAddedRaw:      cell(2),
		StatusRaw:         cell(3),
		CommentsRaw:       cell(4),
		ApplicationURLRaw: util.StringPtr(href),
	}, true
}

// DetailText returns the visible text of a result page.
func DetailText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()
	if len(doc.Nodes) == 0 {
		return "", nil
	}
	return spacedText(doc.Nodes[0]), nil
}

// spacedText joins the node's text fragments with single spaces.
func spacedText(node *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(node)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
