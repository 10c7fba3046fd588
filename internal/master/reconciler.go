package master

import (
	"errors"
	"io/fs"

	"github.com/rs/zerolog"

	"gradcafe/internal"
	"gradcafe/internal/util"
)

// Reconciler keeps the master file: every canonical row ever produced,
// unique by result_id, newest first.
type Reconciler struct {
	path string
	log  zerolog.Logger
}

func NewReconciler(path string, log zerolog.Logger) *Reconciler {
	return &Reconciler{path: path, log: log.With().Str("component", "master").Logger()}
}

func (r *Reconciler) Path() string { return r.path }

// Load returns the master rows. A missing or unreadable file is an empty set.
func (r *Reconciler) Load() []internal.CanonicalRow {
	var rows []internal.CanonicalRow
	if err := util.ReadJSONFile(r.path, &rows); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			r.log.Warn().Err(err).Str("path", r.path).Msg("master file unreadable, starting empty")
		}
		return nil
	}
	return rows
}

func (r *Reconciler) KnownIDs() map[int64]struct{} {
	return knownIDs(r.Load())
}

// Append prepends rows whose result_id is not yet in the master file, writes
// the merged list back and returns only the added rows.
func (r *Reconciler) Append(newRows []internal.CanonicalRow) ([]internal.CanonicalRow, error) {
	existing := r.Load()
	seen := knownIDs(existing)

	added := make([]internal.CanonicalRow, 0)
	for _, row := range newRows {
		if row.ResultID == nil {
			continue
		}
		if _, ok := seen[*row.ResultID]; ok {
			continue
		}
		seen[*row.ResultID] = struct{}{}
		added = append(added, row)
	}

	merged := make([]internal.CanonicalRow, 0, len(added)+len(existing))
	merged = append(merged, added...)
	merged = append(merged, existing...)

	if err := util.WriteJSONFile(r.path, merged); err != nil {
		return nil, err
	}
	r.log.Info().Int("added", len(added)).Int("total", len(merged)).Msg("master file updated")
	return added, nil
}

func knownIDs(rows []internal.CanonicalRow) map[int64]struct{} {
	ids := make(map[int64]struct{}, len(rows))
	for _, row := range rows {
		if row.ResultID != nil {
			ids[*row.ResultID] = struct{}{}
		}
	}
	return ids
}
