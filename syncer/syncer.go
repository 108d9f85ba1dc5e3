package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/publicidadxacarlos-cell/FinanzaAI/ledger"
	"github.com/rapidloop/skv"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"

	"github.com/publicidadxacarlos-cell/FinanzaAI/tracing"
)

const endpointKey = "googleSheetUrl"

// syncDelay spaces SyncAll requests so the Apps Script endpoint is not
// overwhelmed. One request at a time, no batching.
const syncDelay = 600 * time.Millisecond

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

var (
	ErrNotConfigured  = errors.New("sync endpoint not configured")
	ErrSyncInProgress = errors.New("sync already in progress")
)

var httpClient *http.Client

func init() {
	httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
}

// Result reports what one sync attempt did. The remote spreadsheet is a
// best-effort mirror, so callers are free to ignore it.
type Result struct {
	Attempted  bool
	StatusCode int
	Err        error
}

type Notifier interface {
	Notify(message string)
}

// Syncer replicates ledger mutations to the configured webhook. It is
// never authoritative and never feeds results back into the store.
type Syncer struct {
	mu       sync.Mutex
	kv       *skv.KVStore
	notifier Notifier
	endpoint string
	delay    time.Duration
	syncing  int32
}

func New(kv *skv.KVStore, notifier Notifier) *Syncer {
	s := &Syncer{kv: kv, notifier: notifier, delay: syncDelay}
	var url string
	if err := kv.Get(endpointKey, &url); err == nil {
		s.endpoint = url
	}
	return s
}

func (s *Syncer) Endpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoint
}

func (s *Syncer) SetEndpoint(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoint = url
	if url == "" {
		return s.kv.Delete(endpointKey)
	}
	return s.kv.Put(endpointKey, url)
}

// Syncing reports whether a SyncAll pass is in flight.
func (s *Syncer) Syncing() bool {
	return atomic.LoadInt32(&s.syncing) == 1
}

type payload struct {
	ledger.Transaction
	Action Action `json:"action"`
}

// SyncOne mirrors a single mutation, fire-and-forget. Failures are
// swallowed into the Result and at most surfaced as a notification.
func (s *Syncer) SyncOne(ctx context.Context, t ledger.Transaction, action Action) Result {
	endpoint := s.Endpoint()
	if endpoint == "" {
		return Result{}
	}

	res := s.post(ctx, endpoint, t, action)
	if res.Err != nil && s.notifier != nil {
		s.notifier.Notify("No se pudo sincronizar con Google Sheets")
	}
	return res
}

// SyncAll replays the whole ledger oldest-first, one create-tagged
// request per transaction. Individual failures are ignored and the loop
// always runs to completion. There is no checkpoint: an interrupted pass
// starts over from the first transaction next time.
func (s *Syncer) SyncAll(ctx context.Context, transactions []ledger.Transaction) error {
	endpoint := s.Endpoint()
	if endpoint == "" {
		return ErrNotConfigured
	}
	if !atomic.CompareAndSwapInt32(&s.syncing, 0, 1) {
		return ErrSyncInProgress
	}
	defer atomic.StoreInt32(&s.syncing, 0)

	s.run(ctx, endpoint, transactions)
	return nil
}

// Start is SyncAll in the background. The busy flag is claimed before
// returning, so a concurrent Start deterministically fails instead of
// racing the goroutine launch.
func (s *Syncer) Start(ctx context.Context, transactions []ledger.Transaction) error {
	endpoint := s.Endpoint()
	if endpoint == "" {
		return ErrNotConfigured
	}
	if !atomic.CompareAndSwapInt32(&s.syncing, 0, 1) {
		return ErrSyncInProgress
	}

	go func() {
		defer atomic.StoreInt32(&s.syncing, 0)
		s.run(ctx, endpoint, transactions)
	}()
	return nil
}

func (s *Syncer) run(ctx context.Context, endpoint string, transactions []ledger.Transaction) {
	ctx, span := tracing.NewSpan("syncer.syncall", ctx)
	defer span.End()

	failed := 0
	for i := len(transactions) - 1; i >= 0; i-- {
		if res := s.post(ctx, endpoint, transactions[i], ActionCreate); res.Err != nil {
			failed++
		}
		if i > 0 {
			time.Sleep(s.delay)
		}
	}
	log.Info().Msgf("Sync complete: %d transactions, %d failed", len(transactions), failed)
	if failed > 0 && s.notifier != nil {
		s.notifier.Notify("Sincronización completada con errores")
	}
}

func (s *Syncer) post(ctx context.Context, endpoint string, t ledger.Transaction, action Action) Result {
	ctx, span := tracing.NewSpan("syncer.post", ctx)
	defer span.End()

	body, _ := json.Marshal(payload{Transaction: t, Action: action})

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Unable to create Request")
		log.Error().Err(err).Msg("Unable to create Request")
		return Result{Attempted: true, Err: err}
	}
	req.Header.Add("Content-Type", "application/json")

	resp, err := httpClient.Do(req)

	log.Trace().Str("action", string(action)).Str("id", t.ID).Msgf("POST %s", endpoint)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failure calling webhook")
		log.Error().Err(err).Msg("Failure calling webhook")
		return Result{Attempted: true, Err: err}
	}

	// Response body is discarded: the webhook is unauthenticated and
	// best-effort, only the status code is kept for the Result.
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		span.SetStatus(codes.Error, "unsucessful statuscode returned")
		return Result{Attempted: true, StatusCode: resp.StatusCode, Err: errors.New("unsucessful statuscode returned")}
	}

	return Result{Attempted: true, StatusCode: resp.StatusCode}
}
