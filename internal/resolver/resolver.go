// Package resolver implements the manufacturer-URL resolution and
// validation engine: query building, domain resolution, candidate
// discovery, page validation, and the accept/reject decision.
package resolver

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/medicalexcom/sourcematch/internal/config"
	"github.com/medicalexcom/sourcematch/internal/fetch"
	"github.com/medicalexcom/sourcematch/internal/model"
	"github.com/medicalexcom/sourcematch/internal/query"
	"github.com/medicalexcom/sourcematch/internal/store"
)

// Engine resolves match rows against the manufacturer's own domain. Every
// dependency is constructor-injected so the mutating and trace paths share
// one implementation with different output sinks.
type Engine struct {
	rows      store.RowStore
	index     store.IndexStore
	provider  SearchProvider
	fetcher   fetch.Fetcher
	cfg       config.ResolverConfig
	overrides *Overrides
}

// New creates an Engine.
func New(rows store.RowStore, index store.IndexStore, provider SearchProvider, fetcher fetch.Fetcher, cfg config.ResolverConfig) *Engine {
	if cfg.ResultCap <= 0 {
		cfg.ResultCap = 8
	}
	if cfg.IndexDomainLimit <= 0 {
		cfg.IndexDomainLimit = 5
	}
	if cfg.ValidateConcurrency <= 0 {
		cfg.ValidateConcurrency = 4
	}
	return &Engine{
		rows:     rows,
		index:    index,
		provider: provider,
		fetcher:  fetcher,
		cfg:      cfg,
	}
}

// outcome is the result of one pipeline run, independent of whether it
// will be persisted or only traced.
type outcome struct {
	domain    string
	threshold float64
	validated []model.Candidate
	accepted  *model.Candidate
	matchedBy string
}

// Resolve loads a row, runs the pipeline, and persists the result. Row
// store write failures propagate; everything upstream degrades to an
// unresolved outcome with whatever partial evidence exists.
func (e *Engine) Resolve(ctx context.Context, rowID string) (*model.MatchRow, error) {
	row, err := e.rows.GetRow(ctx, rowID)
	if err != nil {
		return nil, eris.Wrapf(err, "resolver: load row %s", rowID)
	}
	row.Normalize()
	if err := row.Validate(); err != nil {
		return nil, eris.Wrapf(err, "resolver: validate row %s", rowID)
	}

	out := e.run(ctx, row, nil)
	e.apply(row, out)

	if err := e.rows.UpdateRowResult(ctx, row); err != nil {
		return nil, eris.Wrapf(err, "resolver: persist row %s", rowID)
	}

	if row.Status == model.StatusResolvedConfident {
		e.upsertIndex(ctx, row, out)
	}

	zap.L().Info("resolver: row resolved",
		zap.String("row_id", row.ID),
		zap.String("status", string(row.Status)),
		zap.String("resolved_domain", row.ResolvedDomain),
		zap.Float64("confidence", row.Confidence),
	)
	return row, nil
}

// Trace runs the full pipeline for a row without mutating the row store or
// the source index, recording every intermediate decision.
func (e *Engine) Trace(ctx context.Context, rowID string) (*RowTrace, error) {
	row, err := e.rows.GetRow(ctx, rowID)
	if err != nil {
		return nil, eris.Wrapf(err, "resolver: load row %s", rowID)
	}
	row.Normalize()
	if err := row.Validate(); err != nil {
		return nil, eris.Wrapf(err, "resolver: validate row %s", rowID)
	}

	tr := newRowTrace(row)
	e.run(ctx, row, tr)
	return tr, nil
}

// run executes the pipeline: queries, domain, candidates, validation,
// decision. tr may be nil (mutating path); all trace recording is
// nil-guarded so the two paths cannot drift.
func (e *Engine) run(ctx context.Context, row *model.MatchRow, tr *RowTrace) *outcome {
	queries := query.Build(row)
	tr.setQueries(queries)

	domain := e.resolveDomain(ctx, row, tr)
	tr.setDomain(domain)

	filtered := e.gather(ctx, row, domain, queries, tr)

	validated := e.validateAll(ctx, row, domain, filtered, tr)

	return e.decide(domain, validated, tr)
}

// apply maps a pipeline outcome onto the row's output fields, preserving
// the status invariant: resolved_confident carries exactly one candidate.
func (e *Engine) apply(row *model.MatchRow, out *outcome) {
	row.UpdatedAt = time.Now().UTC()

	if out.accepted == nil {
		row.Status = model.StatusUnresolved
		row.Candidates = out.validated
		row.ResolvedURL = ""
		row.ResolvedDomain = ""
		row.MatchedBy = ""
		row.Confidence = 0
		if len(out.validated) > 0 {
			row.Confidence = out.validated[0].Score
		}
		return
	}

	row.Status = model.StatusResolvedConfident
	row.Candidates = []model.Candidate{*out.accepted}
	row.ResolvedURL = out.accepted.URL
	row.ResolvedDomain = out.accepted.Domain
	row.Confidence = out.accepted.Score
	row.MatchedBy = out.matchedBy
}

// upsertIndex records a confident resolution in the source index so future
// rows for the same supplier skip the network search. Best-effort: index
// write failures are logged, never propagated, since the row itself is
// already consistent.
func (e *Engine) upsertIndex(ctx context.Context, row *model.MatchRow, out *outcome) {
	if row.SKUNorm == "" {
		// NDC-only rows would collide on an empty sku_norm key, so they
		// are not indexed.
		zap.L().Warn("resolver: skipping index upsert for row without sku_norm",
			zap.String("row_id", row.ID),
		)
		return
	}

	entry := &model.SourceIndexEntry{
		TenantID:     row.TenantID,
		SupplierKey:  row.SupplierKey,
		SKUNorm:      row.SKUNorm,
		SourceDomain: row.ResolvedDomain,
		SourceURL:    row.ResolvedURL,
		Confidence:   row.Confidence,
		Signals: map[string]string{
			"matched_by": row.MatchedBy,
			"source":     string(out.accepted.Source),
		},
		LastSeenAt: time.Now().UTC(),
	}
	if err := e.index.UpsertEntry(ctx, entry); err != nil {
		zap.L().Warn("resolver: index upsert failed",
			zap.String("row_id", row.ID),
			zap.Error(err),
		)
	}
}

// ResolveAll resolves a batch of rows with bounded concurrency. Failures
// are logged per row; the queue owns retries.
func (e *Engine) ResolveAll(ctx context.Context, rowIDs []string, concurrency int) (resolved, failed int) {
	if concurrency <= 0 {
		concurrency = 1
	}

	var okCount, errCount atomic.Int64
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, id := range rowIDs {
		g.Go(func() error {
			if _, err := e.Resolve(gCtx, id); err != nil {
				errCount.Add(1)
				zap.L().Error("resolver: row failed",
					zap.String("row_id", id),
					zap.Error(err),
				)
				return nil
			}
			okCount.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return int(okCount.Load()), int(errCount.Load())
}
