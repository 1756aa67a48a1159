// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package updates

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/telecraft/mtproto/internal/tl"
	log "github.com/telecraft/mtproto/pkg/minilog"
)

// Invoker is the subset of the Encrypted Sender the engine needs to repair
// a detected gap. *sender.Sender satisfies it; tests supply a fake.
type Invoker interface {
	Invoke(ctx context.Context, req tl.Request) (*tl.Object, error)
}

// AppliedUpdates is one batch handed to a consumer: a set of update
// objects the engine decided not to hold back, any new messages/users/chats
// that arrived alongside them (from a live push or a resync).
type AppliedUpdates struct {
	Updates     []*tl.Object
	NewMessages []*tl.Object
	Users       []*tl.Object
	Chats       []*tl.Object
}

func (a AppliedUpdates) empty() bool {
	return len(a.Updates) == 0 && len(a.NewMessages) == 0 && len(a.Users) == 0 && len(a.Chats) == 0
}

// Config tunes the engine's resync behavior.
type Config struct {
	// DifferenceTimeout bounds each getDifference/getChannelDifference/
	// getState call issued while resolving a gap.
	DifferenceTimeout time.Duration
	// OutBufferSize is the capacity of the engine's output channel. A
	// batch is dropped (and logged) if the channel is full, so a slow
	// consumer can't stall the connection's receive loop.
	OutBufferSize int
}

func DefaultConfig() Config {
	return Config{DifferenceTimeout: 30 * time.Second, OutBufferSize: 256}
}

// Engine applies incoming update objects against its State, detecting gaps
// in pts/qts/channel pts and repairing them via Invoker before forwarding
// anything to consumers. It satisfies sender.UpdatesSink via HandleUpdate.
type Engine struct {
	mu    sync.Mutex
	state State

	invoker Invoker
	metrics *metrics
	cfg     Config

	out chan AppliedUpdates
}

func New(invoker Invoker, reg prometheus.Registerer, cfg Config) *Engine {
	return &Engine{
		state:   newState(),
		invoker: invoker,
		metrics: newMetrics(reg),
		cfg:     cfg,
		out:     make(chan AppliedUpdates, cfg.OutBufferSize),
	}
}

// Stream returns the channel of applied update batches. Consumers should
// drain it promptly; a full buffer causes batches to be dropped.
func (e *Engine) Stream() <-chan AppliedUpdates {
	return e.out
}

// Snapshot returns a consistent copy of the engine's current pts/qts/date/
// seq/channel-pts state, safe to persist via internal/sessionfile.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.snapshot()
}

// Seed primes the engine's state from a prior session (loaded from
// internal/sessionfile) or from an initial updates.getState call, without
// going through gap detection.
func (e *Engine) Seed(s State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = s.snapshot()
}

// HandleUpdate satisfies sender.UpdatesSink: it's called once per
// update-shaped object the Encrypted Sender forwards out of the receive
// loop.
func (e *Engine) HandleUpdate(obj *tl.Object) {
	e.apply(context.Background(), obj)
}

// Apply is the same entry point as HandleUpdate but lets a caller supply
// its own context (bounding how long a gap-repair call may block).
func (e *Engine) Apply(ctx context.Context, obj *tl.Object) {
	e.apply(ctx, obj)
}

func (e *Engine) apply(ctx context.Context, obj *tl.Object) {
	switch obj.Name {
	case "updatesTooLong":
		e.fetchDifference(ctx)
	case "updateShortMessage", "updateShortChatMessage":
		e.applyShortMessage(ctx, obj)
	case "updateShort":
		e.applyShort(ctx, obj)
	case "updates", "updatesCombined":
		e.applyCombined(ctx, obj)
	default:
		e.applyGeneric(ctx, obj)
	}
}

func (e *Engine) applyShort(ctx context.Context, obj *tl.Object) {
	if d, ok := int32Field(obj, "date"); ok {
		e.mu.Lock()
		e.state.Date = d
		e.mu.Unlock()
	}
	inner, ok := obj.Get("update")
	if !ok {
		return
	}
	innerObj, ok := inner.(*tl.Object)
	if !ok {
		return
	}
	e.apply(ctx, innerObj)
}

func (e *Engine) applyCombined(ctx context.Context, obj *tl.Object) {
	if d, ok := int32Field(obj, "date"); ok {
		e.mu.Lock()
		e.state.Date = d
		e.mu.Unlock()
	}
	if s, ok := int32Field(obj, "seq"); ok {
		e.mu.Lock()
		e.state.Seq = s
		e.mu.Unlock()
	}

	var users, chats []*tl.Object
	if v, ok := obj.Get("users"); ok {
		users = toObjects(v)
	}
	if v, ok := obj.Get("chats"); ok {
		chats = toObjects(v)
	}

	subs, _ := obj.Get("updates")
	for _, s := range toObjects(subs) {
		e.applyGeneric(ctx, s)
	}

	if len(users) > 0 || len(chats) > 0 {
		e.emit(AppliedUpdates{Users: users, Chats: chats})
	}
}

// applyGeneric handles any update object not recognized as one of the
// named envelope wrappers: per spec, gap detection keys off which
// bookkeeping fields the object itself carries (channel_id+pts+pts_count,
// plain pts+pts_count, or qts+qts_count), not its constructor name.
func (e *Engine) applyGeneric(ctx context.Context, obj *tl.Object) {
	channelID, hasChannel := int64Field(obj, "channel_id")
	pts, hasPts := int32Field(obj, "pts")
	ptsCount, hasPtsCount := int32Field(obj, "pts_count")

	if hasChannel && hasPts && hasPtsCount {
		e.applyChannelUpdate(ctx, obj, channelID, pts, ptsCount)
		return
	}
	if hasPts && hasPtsCount {
		e.applyPtsGap(ctx, obj, pts, ptsCount)
		return
	}
	if qts, hasQts := int32Field(obj, "qts"); hasQts {
		if qtsCount, hasQtsCount := int32Field(obj, "qts_count"); hasQtsCount {
			e.applyQtsGap(ctx, obj, qts, qtsCount)
			return
		}
	}
	e.emit(AppliedUpdates{Updates: []*tl.Object{obj}})
}

func (e *Engine) applyShortMessage(ctx context.Context, obj *tl.Object) {
	pts, okP := int32Field(obj, "pts")
	ptsCount, okC := int32Field(obj, "pts_count")
	if !okP || !okC {
		e.emit(AppliedUpdates{Updates: []*tl.Object{obj}})
		return
	}

	e.mu.Lock()
	expected := e.state.Pts + ptsCount
	e.mu.Unlock()

	if pts == expected {
		e.mu.Lock()
		e.state.Pts = pts
		if d, ok := int32Field(obj, "date"); ok {
			e.state.Date = d
		}
		e.mu.Unlock()
		e.emit(AppliedUpdates{Updates: []*tl.Object{obj}})
		return
	}
	e.resolvePtsGap(ctx, obj, pts)
}

func (e *Engine) applyPtsGap(ctx context.Context, obj *tl.Object, pts, ptsCount int32) {
	e.mu.Lock()
	expected := e.state.Pts + ptsCount
	e.mu.Unlock()

	if pts == expected {
		e.mu.Lock()
		e.state.Pts = pts
		e.mu.Unlock()
		e.emit(AppliedUpdates{Updates: []*tl.Object{obj}})
		return
	}
	e.resolvePtsGap(ctx, obj, pts)
}

// resolvePtsGap buffers the triggering update implicitly (it's the caller's
// stack frame; nothing else observes it meanwhile), fetches a difference,
// and either replays it if the gap closed exactly or discards it as stale.
func (e *Engine) resolvePtsGap(ctx context.Context, pending *tl.Object, pendingPts int32) {
	e.metrics.gaps.Inc()
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	e.fetchDifference(ctx)

	e.mu.Lock()
	current := e.state.Pts
	e.mu.Unlock()

	if pendingPts <= current {
		return
	}
	ptsCount, _ := int32Field(pending, "pts_count")
	if pendingPts == current+ptsCount {
		e.mu.Lock()
		e.state.Pts = pendingPts
		e.mu.Unlock()
		e.emit(AppliedUpdates{Updates: []*tl.Object{pending}})
		return
	}
	log.Warn("updates: discarding stale update after unresolved pts gap")
}

func (e *Engine) applyQtsGap(ctx context.Context, obj *tl.Object, qts, qtsCount int32) {
	e.mu.Lock()
	expected := e.state.Qts + qtsCount
	e.mu.Unlock()

	if qts == expected {
		e.mu.Lock()
		e.state.Qts = qts
		e.mu.Unlock()
		e.emit(AppliedUpdates{Updates: []*tl.Object{obj}})
		return
	}

	e.metrics.gaps.Inc()
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	e.fetchDifference(ctx)

	e.mu.Lock()
	current := e.state.Qts
	e.mu.Unlock()

	if qts <= current {
		return
	}
	if qts == current+qtsCount {
		e.mu.Lock()
		e.state.Qts = qts
		e.mu.Unlock()
		e.emit(AppliedUpdates{Updates: []*tl.Object{obj}})
		return
	}
	log.Warn("updates: discarding stale update after unresolved qts gap")
}

func (e *Engine) applyChannelUpdate(ctx context.Context, obj *tl.Object, channelID int64, pts, ptsCount int32) {
	e.mu.Lock()
	prev, seen := e.state.ChannelPts[channelID]
	e.mu.Unlock()

	if !seen {
		e.mu.Lock()
		e.state.ChannelPts[channelID] = pts
		e.mu.Unlock()
		e.emit(AppliedUpdates{Updates: []*tl.Object{obj}})
		return
	}

	if pts == prev+ptsCount {
		e.mu.Lock()
		e.state.ChannelPts[channelID] = pts
		e.mu.Unlock()
		e.emit(AppliedUpdates{Updates: []*tl.Object{obj}})
		return
	}
	e.resolveChannelGap(ctx, channelID, obj, pts)
}

func (e *Engine) resolveChannelGap(ctx context.Context, channelID int64, pending *tl.Object, pendingPts int32) {
	e.metrics.gaps.Inc()
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	for {
		e.mu.Lock()
		basePts := e.state.ChannelPts[channelID]
		e.mu.Unlock()

		result, err := e.invoker.Invoke(ctx, getChannelDifferenceRequest{channelID: channelID, pts: basePts})
		if err != nil {
			log.Errorln("updates: getChannelDifference failed:", err)
			return
		}
		if e.applyChannelDifference(channelID, result) {
			break
		}
	}

	e.mu.Lock()
	current := e.state.ChannelPts[channelID]
	e.mu.Unlock()

	if pendingPts <= current {
		return
	}
	ptsCount, _ := int32Field(pending, "pts_count")
	if pendingPts == current+ptsCount {
		e.mu.Lock()
		e.state.ChannelPts[channelID] = pendingPts
		e.mu.Unlock()
		e.emit(AppliedUpdates{Updates: []*tl.Object{pending}})
		return
	}
	log.Warn("updates: discarding stale channel update after unresolved pts gap")
}

func (e *Engine) applyChannelDifference(channelID int64, result *tl.Object) (final bool) {
	switch result.Name {
	case "updates.channelDifferenceEmpty":
		if p, ok := int32Field(result, "pts"); ok {
			e.mu.Lock()
			e.state.ChannelPts[channelID] = p
			e.mu.Unlock()
		}
		return boolField(result, "final")
	case "updates.channelDifference":
		e.absorbDifference(result)
		if p, ok := int32Field(result, "pts"); ok {
			e.mu.Lock()
			e.state.ChannelPts[channelID] = p
			e.mu.Unlock()
		}
		return boolField(result, "final")
	case "updates.channelDifferenceTooLong":
		if p, ok := int32Field(result, "pts"); ok {
			e.mu.Lock()
			e.state.ChannelPts[channelID] = p
			e.mu.Unlock()
		}
		return true
	default:
		return true
	}
}

// fetchDifference runs the updates.getDifference loop: differenceEmpty and
// difference are terminal, differenceSlice loops again from the returned
// intermediate_state, and differenceTooLong forces a full resync via
// updates.getState.
func (e *Engine) fetchDifference(ctx context.Context) {
	for {
		snap := e.Snapshot()
		result, err := e.invoker.Invoke(ctx, getDifferenceRequest{pts: snap.Pts, date: snap.Date, qts: snap.Qts})
		if err != nil {
			log.Errorln("updates: getDifference failed:", err)
			return
		}
		if !e.applyDifferenceResult(ctx, result) {
			return
		}
	}
}

func (e *Engine) applyDifferenceResult(ctx context.Context, result *tl.Object) (more bool) {
	switch result.Name {
	case "updates.differenceEmpty":
		e.mu.Lock()
		if d, ok := int32Field(result, "date"); ok {
			e.state.Date = d
		}
		if s, ok := int32Field(result, "seq"); ok {
			e.state.Seq = s
		}
		e.mu.Unlock()
		return false
	case "updates.difference":
		e.absorbDifference(result)
		e.overwriteStateFrom(result, "state")
		return false
	case "updates.differenceSlice":
		e.absorbDifference(result)
		e.overwriteStateFrom(result, "intermediate_state")
		return true
	case "updates.differenceTooLong":
		e.resyncFull(ctx)
		return false
	default:
		return false
	}
}

func (e *Engine) resyncFull(ctx context.Context) {
	result, err := e.invoker.Invoke(ctx, getStateRequest{})
	if err != nil {
		log.Errorln("updates: getState failed:", err)
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := int32Field(result, "pts"); ok {
		e.state.Pts = p
	}
	if q, ok := int32Field(result, "qts"); ok {
		e.state.Qts = q
	}
	if d, ok := int32Field(result, "date"); ok {
		e.state.Date = d
	}
	if s, ok := int32Field(result, "seq"); ok {
		e.state.Seq = s
	}
}

func (e *Engine) absorbDifference(result *tl.Object) {
	var batch AppliedUpdates
	if v, ok := result.Get("new_messages"); ok {
		batch.NewMessages = toObjects(v)
	}
	if v, ok := result.Get("other_updates"); ok {
		batch.Updates = toObjects(v)
	}
	if v, ok := result.Get("users"); ok {
		batch.Users = toObjects(v)
	}
	if v, ok := result.Get("chats"); ok {
		batch.Chats = toObjects(v)
	}
	if !batch.empty() {
		e.emit(batch)
	}
}

func (e *Engine) overwriteStateFrom(result *tl.Object, field string) {
	v, ok := result.Get(field)
	if !ok {
		return
	}
	st, ok := v.(*tl.Object)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := int32Field(st, "pts"); ok {
		e.state.Pts = p
	}
	if q, ok := int32Field(st, "qts"); ok {
		e.state.Qts = q
	}
	if d, ok := int32Field(st, "date"); ok {
		e.state.Date = d
	}
	if s, ok := int32Field(st, "seq"); ok {
		e.state.Seq = s
	}
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.DifferenceTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.cfg.DifferenceTimeout)
}

func (e *Engine) emit(batch AppliedUpdates) {
	if batch.empty() {
		return
	}
	select {
	case e.out <- batch:
	default:
		log.Warn("updates: output buffer full, dropping a batch")
	}
}

func int32Field(obj *tl.Object, name string) (int32, bool) {
	v, ok := obj.Get(name)
	if !ok {
		return 0, false
	}
	n, ok := v.(int32)
	return n, ok
}

func int64Field(obj *tl.Object, name string) (int64, bool) {
	v, ok := obj.Get(name)
	if !ok {
		return 0, false
	}
	n, ok := v.(int64)
	return n, ok
}

func boolField(obj *tl.Object, name string) bool {
	v, ok := obj.Get(name)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

func toObjects(v interface{}) []*tl.Object {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]*tl.Object, 0, len(items))
	for _, it := range items {
		if obj, ok := it.(*tl.Object); ok {
			out = append(out, obj)
		}
	}
	return out
}
