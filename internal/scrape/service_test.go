package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"gradcafe/internal/config"
	"gradcafe/internal/util"
)

const listingPage = `<html><body><table>
<tr><th>School</th><th>Program</th></tr>
<tr>
  <td>MIT</td>
  <td><span>Computer Science</span> <span>PhD</span></td>
  <td>February 1, 2026</td>
  <td>Accepted on 1 Feb</td>
  <td><a href="/result/101">See More</a></td>
</tr>
<tr><td>Fall 2026 International GPA 3.90</td></tr>
<tr>
  <td>Stanford</td>
  <td>Physics</td>
  <td>January 30, 2026</td>
  <td>Rejected</td>
  <td><a href="https://www.thegradcafe.com/result/100">See More</a></td>
</tr>
<tr><td>no link here</td><td>x</td></tr>
</table></body></html>`

func TestParseListing(t *testing.T) {
	recs, err := ParseListing(strings.NewReader(listingPage), "https://www.thegradcafe.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("len=%d", len(recs))
	}

	first := recs[0]
	if first.ResultID == nil || *first.ResultID != 101 {
		t.Fatalf("id=%v", first.ResultID)
	}
	if got := util.Deref(first.ProgramRaw); got != "Computer Science PhD" {
		t.Fatalf("program=%q", got)
	}
	if got := util.Deref(first.ApplicationURLRaw); got != "https://www.thegradcafe.com/result/101" {
		t.Fatalf("url=%q", got)
	}
	if got := util.Deref(first.TermInferred); got != "Fall 2026" {
		t.Fatalf("term=%q", got)
	}

	second := recs[1]
	if *second.ResultID != 100 || second.TermInferred != nil || util.Deref(second.UniversityRaw) != "Stanford" {
		t.Fatalf("second=%+v", second)
	}
}

func TestDetailTextDropsScripts(t *testing.T) {
	text, err := DetailText(strings.NewReader(`<html><head><script>var x = 1;</script></head>
<body><dl><dt>Decision</dt><dd>Accepted</dd><dt>Notification</dt><dd>on 01/02/2024</dd></dl></body></html>`))
	if err != nil {
		t.Fatal(err)
	}
	if text != "Decision Accepted Notification on 01/02/2024" {
		t.Fatalf("text=%q", text)
	}
}

func TestResultIDFromURL(t *testing.T) {
	if id := ResultIDFromURL("https://www.thegradcafe.com/result/994157"); id == nil || *id != 994157 {
		t.Fatalf("id=%v", id)
	}
	if id := ResultIDFromURL("https://www.thegradcafe.com/survey/"); id != nil {
		t.Fatalf("id=%d", *id)
	}
}

type fakeSite struct {
	mu       sync.Mutex
	pages    map[int]string
	failures map[string]int
	hits     map[string]int
}

func (f *fakeSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hits == nil {
		f.hits = map[string]int{}
	}
	f.hits[r.URL.Path]++

	if n := f.failures[r.URL.Path]; n > 0 {
		f.failures[r.URL.Path] = n - 1
		w.WriteHeader(http.StatusBadGateway)
		return
	}

	switch {
	case r.URL.Path == "/survey/":
		page := 1
		_, _ = fmt.Sscanf(r.URL.Query().Get("page"), "%d", &page)
		body, ok := f.pages[page]
		if !ok {
			body = "<html><body><table></table></body></html>"
		}
		_, _ = w.Write([]byte(body))
	case strings.HasPrefix(r.URL.Path, "/result/"):
		if r.URL.Path == "/result/404" {
			http.NotFound(w, r)
			return
		}
		_, _ = fmt.Fprintf(w, "<html><body><p>Decision Accepted Notification on 01/02/2024</p><p>%s</p></body></html>", r.URL.Path)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeSite) hitCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func listingRow(id int) string {
	return fmt.Sprintf(`<tr><td>Uni %d</td><td>Prog</td><td>January 1, 2026</td><td>Accepted</td><td><a href="/result/%d">x</a></td></tr>`, id, id)
}

func testService(baseURL string, maxRows int) *Service {
	cfg := config.Config{ScrapeBaseURL: baseURL, ScrapeMaxRows: maxRows, ScrapeTimeoutSec: 5}
	s := NewService(cfg, zerolog.Nop())
	s.sleep = func(context.Context, time.Duration) error { return nil }
	return s
}

func TestScrapeStopsAtKnownID(t *testing.T) {
	site := &fakeSite{pages: map[int]string{
		1: "<table>" + listingRow(5) + listingRow(4) + "</table>",
		2: "<table>" + listingRow(3) + listingRow(2) + listingRow(1) + "</table>",
	}}
	srv := httptest.NewServer(site)
	defer srv.Close()

	res, err := testService(srv.URL, 100).Scrape(context.Background(), map[int64]struct{}{2: {}})
	if err != nil {
		t.Fatal(err)
	}
	if !res.StoppedAtKnown || res.Pages != 2 {
		t.Fatalf("result=%+v", res)
	}
	var ids []int64
	for _, rec := range res.Records {
		ids = append(ids, *rec.ResultID)
		if rec.ResultTextRaw == nil || !strings.Contains(*rec.ResultTextRaw, "Decision Accepted") {
			t.Fatalf("detail text missing for %d", *rec.ResultID)
		}
	}
	if fmt.Sprint(ids) != "[5 4 3]" {
		t.Fatalf("ids=%v", ids)
	}
	if site.hitCount("/result/1") != 0 {
		t.Fatal("fetched detail past the known id")
	}
}

func TestScrapeDetailFailureKeepsRecord(t *testing.T) {
	site := &fakeSite{
		pages:    map[int]string{1: "<table>" + listingRow(404) + listingRow(7) + "</table>"},
		failures: map[string]int{"/result/7": 2},
	}
	srv := httptest.NewServer(site)
	defer srv.Close()

	res, err := testService(srv.URL, 2).Scrape(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("records=%d", len(res.Records))
	}
	if res.Records[0].ResultTextRaw != nil {
		t.Fatal("missing detail page must yield nil text")
	}
	if res.Records[1].ResultTextRaw == nil {
		t.Fatal("retried detail page should succeed")
	}
	if site.hitCount("/result/7") != 3 {
		t.Fatalf("hits=%d", site.hitCount("/result/7"))
	}
}

func TestScrapeGivesUpAfterEmptyPages(t *testing.T) {
	srv := httptest.NewServer(&fakeSite{pages: map[int]string{}})
	defer srv.Close()

	res, err := testService(srv.URL, 10).Scrape(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Pages != maxEmptyPages || len(res.Records) != 0 {
		t.Fatalf("result=%+v", res)
	}
}

func TestRateLimiterSpacesTurns(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRateLimiter(200 * time.Millisecond)
	r.now = func() time.Time { return base }

	if err := r.WaitTurn(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !r.nextAllowedAt.Equal(base.Add(200 * time.Millisecond)) {
		t.Fatalf("next=%s", r.nextAllowedAt)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.WaitTurn(ctx); err == nil {
		t.Fatal("expected cancellation while waiting")
	}
}
