// Package stats implements the read-modify-write orchestrator: load a
// document from the store, apply an operation batch, and persist the result
// under the optimistic-concurrency contract.
package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"zoolanding/quickstats/internal/patch"
	"zoolanding/quickstats/internal/store"
	"zoolanding/quickstats/pkg/statsproto"
)

// Failure classes surfaced to callers as client errors. The messages are
// part of the API contract.
var (
	// ErrNotFound: the document is absent and the request disallowed creation.
	ErrNotFound = errors.New("Stats file not found")
	// ErrConflict: the supplied ifMatchEtag differs from the stored token.
	// Never retried here; the caller owns the retry.
	ErrConflict = errors.New("ETag mismatch, please retry")
)

// RequestError reports a malformed request envelope.
type RequestError struct {
	msg string
}

func (e *RequestError) Error() string { return e.msg }

// IsClientError reports whether err is the caller's fault and should be
// surfaced with its message; everything else renders as an internal error.
func IsClientError(err error) bool {
	var (
		verr *patch.ValidationError
		perr *patch.PathError
		rerr *RequestError
	)
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.As(err, &verr) ||
		errors.As(err, &perr) ||
		errors.As(err, &rerr)
}

// Result is the outcome of one successful update invocation. ETag is the
// pre-write token when no write happened (dry run).
type Result struct {
	Document  *patch.Document
	Bucket    string
	Key       string
	ETag      string
	VersionID string
	DryRun    bool
	Wrote     bool
}

// Service applies update requests against a document store. One call to
// Update is one invocation: a single load, one ordered pass over the batch,
// at most one write.
type Service struct {
	store         store.Store
	maxRetries    uint64
	retryInterval time.Duration
	forceDryRun   bool
}

// NewService returns a Service writing through st. maxRetries bounds the
// persist retries for transient store failures. forceDryRun suppresses all
// writes regardless of the request (the DRY_RUN deployment mode).
func NewService(st store.Store, maxRetries int, forceDryRun bool) *Service {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Service{
		store:         st,
		maxRetries:    uint64(maxRetries),
		retryInterval: 500 * time.Millisecond,
		forceDryRun:   forceDryRun,
	}
}

// Update loads the document, applies the batch and persists the result.
// Batches are all-or-nothing: the first operation error aborts the whole
// invocation and nothing is written.
func (s *Service) Update(ctx context.Context, req *statsproto.UpdateRequest) (*Result, error) {
	if err := statsproto.ValidateAppName(req.AppName); err != nil {
		return nil, &RequestError{msg: err.Error()}
	}

	// The whole batch is decoded and validated before the store is touched.
	ops, err := patch.DecodeOperations(req.Ops)
	if err != nil {
		return nil, err
	}

	key := store.Key(req.AppName)
	doc, etag, exists, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if !exists && !req.CreateOK() {
		return nil, ErrNotFound
	}
	if req.IfMatchETag != "" && etag != "" && req.IfMatchETag != etag {
		return nil, ErrConflict
	}

	if err := doc.ApplyAll(ops); err != nil {
		return nil, err
	}

	res := &Result{
		Document: doc,
		Bucket:   s.store.Bucket(),
		Key:      key,
		ETag:     etag,
		DryRun:   req.DryRun || s.forceDryRun,
	}
	if res.DryRun {
		log.Info().
			Str("appName", req.AppName).
			Str("key", key).
			Int("ops", len(ops)).
			Msg("dry run result")
		return res, nil
	}

	data, err := doc.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize stats: %w", err)
	}
	put, err := s.persist(ctx, key, data)
	if err != nil {
		return nil, err
	}
	res.ETag = put.ETag
	res.VersionID = put.VersionID
	res.Wrote = true

	log.Info().
		Str("appName", req.AppName).
		Str("key", key).
		Str("etag", put.ETag).
		Int("ops", len(ops)).
		Msg("updated stats")
	return res, nil
}

// load fetches the current document and its version token. A missing
// document yields an empty object and exists=false. The Head probe runs
// first so the version token reflects the stored object even when the body
// read races a concurrent write.
func (s *Service) load(ctx context.Context, key string) (*patch.Document, string, bool, error) {
	headETag, err := s.store.Head(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return patch.NewDocument(), "", false, nil
	}
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to probe stats: %w", err)
	}

	data, getETag, err := s.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		// Deleted between the probe and the read.
		return patch.NewDocument(), "", false, nil
	}
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to read stats: %w", err)
	}

	doc, err := patch.FromJSON(data)
	if err != nil {
		return nil, "", false, fmt.Errorf("stored document is not valid JSON: %w", err)
	}
	etag := headETag
	if etag == "" {
		etag = getETag
	}
	return doc, etag, true, nil
}

// persist writes the serialized document, retrying the identical payload on
// transient failures up to the configured bound. It never re-reads or
// re-applies operations, so a retried write cannot double-apply the batch.
func (s *Service) persist(ctx context.Context, key string, data []byte) (store.PutResult, error) {
	var res store.PutResult
	attempt := func() error {
		put, err := s.store.Put(ctx, key, data)
		if err != nil {
			if store.IsTransient(err) {
				log.Warn().Err(err).Str("key", key).Msg("transient write failure, retrying")
				return err
			}
			return backoff.Permanent(err)
		}
		res = put
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.retryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, s.maxRetries), ctx)
	if err := backoff.Retry(attempt, policy); err != nil {
		return res, fmt.Errorf("failed to write stats: %w", err)
	}
	return res, nil
}
