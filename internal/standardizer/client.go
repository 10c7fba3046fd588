package standardizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"gradcafe/internal"
	"gradcafe/internal/config"
)

var errMissingRows = errors.New("standardizer response missing 'rows'")

// BatchError is returned when one batch exhausts its retry policy. No
// standardized output is produced for the run.
type BatchError struct {
	Batch    int
	Size     int
	Attempts int
	Err      error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("standardizer batch %d (%d keys) failed after %d attempts: %v", e.Batch, e.Size, e.Attempts, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

type Stats struct {
	Inputs     int
	UniqueKeys int
	Batches    int
}

type requestRow struct {
	Program string `json:"program"`
}

type requestBody struct {
	Rows []requestRow `json:"rows"`
}

type responseBody struct {
	Rows *[]internal.StandardizedPair `json:"rows"`
}

type Client struct {
	url        string
	batchSize  int
	httpClient *http.Client
	retry      RetryPolicy
	log        zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
	retry := DefaultRetryPolicy()
	if cfg.StandardizerMaxAttempts > 0 {
		retry.MaxAttempts = cfg.StandardizerMaxAttempts
	}
	batchSize := cfg.StandardizerBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Client{
		url:        cfg.StandardizerURL,
		batchSize:  batchSize,
		httpClient: &http.Client{Timeout: cfg.StandardizerTimeout()},
		retry:      retry,
		log:        log.With().Str("component", "standardizer").Logger(),
	}
}

// BuildKey formats the "<program>, <university>" key sent to the service.
func BuildKey(rec internal.RawRecord) string {
	prog, uni := "", ""
	if rec.ProgramRaw != nil {
		prog = *rec.ProgramRaw
	}
	if rec.UniversityRaw != nil {
		uni = *rec.UniversityRaw
	}
	return strings.Trim(strings.TrimSpace(prog+", "+uni), ",")
}

// BuildKeys returns the key of every record, the record indices grouped per
// key, and the unique keys in first-seen order.
func BuildKeys(records []internal.RawRecord) ([]string, map[string][]int, []string) {
	keys := make([]string, len(records))
	groups := make(map[string][]int)
	order := make([]string, 0)
	for i, rec := range records {
		key := BuildKey(rec)
		keys[i] = key
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}
	return keys, groups, order
}

// Standardize sends each unique key once and maps the answers back so the
// result is aligned with records by index.
func (c *Client) Standardize(ctx context.Context, records []internal.RawRecord) ([]internal.StandardizedPair, Stats, error) {
	keys, _, order := BuildKeys(records)
	stats := Stats{Inputs: len(records), UniqueKeys: len(order)}
	c.log.Info().Int("inputs", stats.Inputs).Int("unique", stats.UniqueKeys).Msg("standardizer inputs deduplicated")

	lookup := make(map[string]internal.StandardizedPair, len(order))
	for start := 0; start < len(order); start += c.batchSize {
		end := min(start+c.batchSize, len(order))
		batch := order[start:end]

		outcome := Run(ctx, c.retry, func(ctx context.Context) ([]internal.StandardizedPair, error) {
			return c.postBatch(ctx, batch)
		}, func(attempt int, wait time.Duration, err error) {
			c.log.Warn().Err(err).Int("batch", stats.Batches).Int("attempt", attempt).Dur("retryIn", wait).Msg("standardizer request failed")
		})
		if !outcome.OK() {
			return nil, stats, &BatchError{Batch: stats.Batches, Size: len(batch), Attempts: outcome.Attempts, Err: outcome.Err}
		}

		for i, pair := range outcome.Value {
			lookup[batch[i]] = pair
		}
		stats.Batches++
		c.log.Info().Int("done", end).Int("total", len(order)).Msg("standardizer progress")
	}

	return fanOut(keys, lookup), stats, nil
}

// fanOut aligns answers with records by index. A key missing from lookup
// yields an empty pair.
func fanOut(keys []string, lookup map[string]internal.StandardizedPair) []internal.StandardizedPair {
	out := make([]internal.StandardizedPair, len(keys))
	for i, key := range keys {
		out[i] = lookup[key]
	}
	return out
}

func (c *Client) postBatch(ctx context.Context, batch []string) ([]internal.StandardizedPair, error) {
	body := requestBody{Rows: make([]requestRow, 0, len(batch))}
	for _, key := range batch {
		body.Rows = append(body.Rows, requestRow{Program: key})
	}
	blob, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	respBody, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("standardizer status=%d body=%s", resp.StatusCode, string(respBody))
	}

	var parsed responseBody
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, err
	}
	if parsed.Rows == nil {
		return nil, errMissingRows
	}
	if len(*parsed.Rows) != len(batch) {
		return nil, fmt.Errorf("standardizer returned %d rows for %d inputs", len(*parsed.Rows), len(batch))
	}
	return *parsed.Rows, nil
}
