package scrape

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"gradcafe/internal"
	"gradcafe/internal/config"
	"gradcafe/internal/util"
)

const (
	userAgent          = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	fetchAttempts      = 5
	maxEmptyPages      = 5
	emptyPageBackoff   = 10 * time.Second
	failedPageBackoff  = 15 * time.Second
	fetchBackoffBase   = time.Second
	surveyPathTemplate = "/survey/"
)

type Result struct {
	Records []internal.RawRecord
	Pages   int

	// StoppedAtKnown is set when a page reached a result that was already collected.
	StoppedAtKnown bool
}

type Service struct {
	baseURL    string
	maxRows    int
	pageDelay  time.Duration
	httpClient *http.Client
	limiter    *RateLimiter
	log        zerolog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewService(cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		baseURL:    strings.TrimRight(cfg.ScrapeBaseURL, "/"),
		maxRows:    cfg.ScrapeMaxRows,
		pageDelay:  time.Duration(cfg.ScrapePageDelayMs) * time.Millisecond,
		httpClient: &http.Client{Timeout: cfg.ScrapeTimeout()},
		limiter:    NewRateLimiter(time.Duration(cfg.ScrapeDetailDelayMs) * time.Millisecond),
		log:        log.With().Str("component", "scrape").Logger(),
		sleep:      sleepContext,
	}
}

func (s *Service) pageURL(page int) string {
	if page <= 1 {
		return s.baseURL + surveyPathTemplate
	}
	return fmt.Sprintf("%s%s?page=%d", s.baseURL, surveyPathTemplate, page)
}

// Scrape walks survey pages from newest to oldest and stops at the first
// result id in known, after maxRows records, or after too many empty pages.
func (s *Service) Scrape(ctx context.Context, known map[int64]struct{}) (Result, error) {
	seen := make(map[int64]struct{}, len(known))
	for id := range known {
		seen[id] = struct{}{}
	}

	var res Result
	emptyPages := 0
	for page := 1; s.maxRows <= 0 || len(res.Records) < s.maxRows; page++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		url := s.pageURL(page)
		s.log.Info().Str("url", url).Msg("scraping page")
		records, stop, err := s.scrapePage(ctx, url, seen)
		res.Pages++
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			emptyPages++
			s.log.Warn().Err(err).Str("url", url).Int("strikes", emptyPages).Msg("page scrape failed")
			if emptyPages >= maxEmptyPages {
				break
			}
			if err := s.sleep(ctx, failedPageBackoff); err != nil {
				return res, err
			}
			continue
		}

		if len(records) == 0 && !stop {
			emptyPages++
			s.log.Warn().Str("url", url).Int("strikes", emptyPages).Msg("no usable rows on page")
			if emptyPages >= maxEmptyPages {
				break
			}
			if err := s.sleep(ctx, emptyPageBackoff); err != nil {
				return res, err
			}
			continue
		}
		emptyPages = 0

		res.Records = append(res.Records, records...)
		for _, rec := range records {
			seen[*rec.ResultID] = struct{}{}
		}
		if stop {
			res.StoppedAtKnown = true
			s.log.Info().Msg("reached previously scraped results")
			break
		}
		s.log.Info().Int("total", len(res.Records)).Msg("scrape progress")

		if err := s.sleep(ctx, s.pageDelay); err != nil {
			return res, err
		}
	}

	if s.maxRows > 0 && len(res.Records) > s.maxRows {
		res.Records = res.Records[:s.maxRows]
	}
	return res, nil
}

func (s *Service) scrapePage(ctx context.Context, url string, seen map[int64]struct{}) ([]internal.RawRecord, bool, error) {
	body, err := s.fetch(ctx, url)
	if err != nil {
		return nil, false, err
	}
	listing, err := ParseListing(bytes.NewReader(body), s.baseURL)
	if err != nil {
		return nil, false, err
	}

	stop := false
	out := make([]internal.RawRecord, 0, len(listing))
	for _, rec := range listing {
		if _, ok := seen[*rec.ResultID]; ok {
			stop = true
			break
		}
		out = append(out, rec)
	}

	for i := range out {
		if err := s.limiter.WaitTurn(ctx); err != nil {
			return nil, false, err
		}
		out[i].ResultTextRaw = s.detailText(ctx, util.Deref(out[i].ApplicationURLRaw))
	}
	return out, stop, nil
}

// detailText returns nil when the page cannot be fetched or parsed; the
// record is kept without detail text.
func (s *Service) detailText(ctx context.Context, url string) *string {
	body, err := s.fetch(ctx, url)
	if err != nil {
		s.log.Warn().Err(err).Str("url", url).Msg("detail fetch failed")
		return nil
	}
	text, err := DetailText(bytes.NewReader(body))
	if err != nil {
		s.log.Warn().Err(err).Str("url", url).Msg("detail parse failed")
		return nil
	}
	return util.StringPtr(text)
}

func (s *Service) fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Referer", s.baseURL+surveyPathTemplate)

		resp, err := s.httpClient.Do(req)
		if err == nil {
			body, readErr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				err = readErr
			case resp.StatusCode >= 500:
				err = fmt.Errorf("status %d", resp.StatusCode)
			case resp.StatusCode < 200 || resp.StatusCode >= 300:
				return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
			default:
				return body, nil
			}
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		lastErr = err
		wait := fetchBackoffBase * time.Duration(1<<attempt)
		s.log.Debug().Err(err).Str("url", url).Dur("retryIn", wait).Msg("fetch failed")
		if err := s.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("fetch %s after %d attempts: %w", url, fetchAttempts, lastErr)
}

// SaveRaw writes the scraped records for the clean step.
func SaveRaw(path string, records []internal.RawRecord) error {
	if records == nil {
		records = []internal.RawRecord{}
	}
	return util.WriteJSONFile(path, records)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
