// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package sender

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/telecraft/mtproto/internal/mterr"
	"github.com/telecraft/mtproto/internal/mtsession"
	"github.com/telecraft/mtproto/internal/tl"
	"github.com/telecraft/mtproto/internal/transport"
	log "github.com/telecraft/mtproto/pkg/minilog"
)

// UpdatesSink receives anything the receive loop recognizes as update-shaped
// (updates, updatesCombined, updateShortMessage, updateShortChatMessage,
// updateShort, updatesTooLong). A Sender with no sink just logs and
// discards these.
type UpdatesSink interface {
	HandleUpdate(obj *tl.Object)
}

// updateShapedNames are the top-level constructor names forwarded to an
// UpdatesSink rather than treated as RPC service traffic.
var updateShapedNames = map[string]bool{
	"updates":                true,
	"updatesCombined":        true,
	"updateShortMessage":     true,
	"updateShortChatMessage": true,
	"updateShort":            true,
	"updatesTooLong":         true,
}

// Config tunes the Sender's retry and ack-batching policy.
type Config struct {
	MaxFloodRetries     int
	MaxFloodWaitSeconds int
	AckBatchInterval    time.Duration
	AckBatchSize        int
}

// DefaultConfig returns the default retry and ack-batching policy.
func DefaultConfig() Config {
	return Config{
		MaxFloodRetries:     defaultMaxFloodRetries,
		MaxFloodWaitSeconds: defaultMaxFloodWaitSeconds,
		AckBatchInterval:    defaultAckBatchInterval,
		AckBatchSize:        defaultAckBatchSize,
	}
}

// Sender is the encrypted RPC layer over one authenticated connection:
// Invoke sends a request and blocks for its matching rpc_result, while a
// single background recvLoop goroutine reads, decrypts, and dispatches
// everything arriving on the wire.
type Sender struct {
	conn  *transport.Conn
	state *mtsession.State
	codec *tl.Codec

	pending *pendingCalls
	acker   *ackBatcher
	updates UpdatesSink
	metrics *metrics
	cfg     Config

	maxQuickAcks int

	closed    chan struct{}
	closeErr  error
	closeOnce bool
}

// New builds a Sender over an already-handshaked connection. appSchema is
// the caller's application TL schema text (method and type definitions);
// it is merged with the sender's own service-layer schema (rpc_error,
// bad_msg_notification, bad_server_salt, new_session_created, msgs_ack,
// ping/pong) into one registry, since every one of these can appear as the
// top-level decoded object on the wire. updates may be nil; reg may be nil
// to skip metrics registration entirely.
func New(conn *transport.Conn, state *mtsession.State, appSchema string, updates UpdatesSink, reg prometheus.Registerer, cfg Config, maxQuickAcks int) (*Sender, error) {
	schema, err := tl.ParseStrict(serviceSchema + "\n" + appSchema)
	if err != nil {
		return nil, fmt.Errorf("sender: schema: %w", err)
	}
	codec := tl.NewCodec(tl.NewRegistry(schema))

	s := &Sender{
		conn:         conn,
		state:        state,
		codec:        codec,
		pending:      newPendingCalls(),
		updates:      updates,
		metrics:      newMetrics(reg),
		cfg:          cfg,
		maxQuickAcks: maxQuickAcks,
		closed:       make(chan struct{}),
	}
	s.acker = newAckBatcher(cfg.AckBatchInterval, cfg.AckBatchSize, s.sendAck)

	go s.recvLoop()
	return s, nil
}

// Invoke sends req and blocks until its matching rpc_result arrives, ctx is
// cancelled, or the connection closes. Cancelling ctx cancels the waiter
// only; the request may still be delivered and the server's reply, once it
// arrives, is silently dropped.
func (s *Sender) Invoke(ctx context.Context, req tl.Request) (*tl.Object, error) {
	msgID, err := s.send(req, true)
	if err != nil {
		return nil, err
	}

	call := &pendingCall{req: req, resultCh: make(chan pendingResult, 1)}
	s.pending.add(msgID, call)
	s.metrics.inflight.Inc()
	defer s.metrics.inflight.Dec()

	select {
	case res := <-call.resultCh:
		return res.obj, res.err
	case <-ctx.Done():
		s.pending.remove(msgID)
		return nil, &mterr.Cancelled{MsgID: msgID}
	case <-s.closed:
		return nil, s.closeErr
	}
}

// send encrypts and writes req under a freshly generated msg_id, returning
// that id.
func (s *Sender) send(req tl.Request, contentRelated bool) (int64, error) {
	w := s.codec.NewWriter()
	if err := w.WriteObject(req.AsObject()); err != nil {
		return 0, fmt.Errorf("sender: encode request: %w", err)
	}

	msgID := s.state.MsgIDGen.Next()
	seqNo := s.state.SeqCounter.Next(contentRelated)
	packet, err := s.state.Encrypt(msgID, seqNo, w.Bytes())
	if err != nil {
		return 0, fmt.Errorf("sender: encrypt: %w", err)
	}
	if err := s.conn.Send(packet); err != nil {
		return 0, fmt.Errorf("sender: send: %w", err)
	}
	return msgID, nil
}

// resend re-encodes a pending call's original request under a fresh msg_id
// and rekeys the pending-call table entry, used by bad_server_salt,
// resynchronizable bad_msg_notification codes, and flood-wait retries.
func (s *Sender) resend(oldID int64, call *pendingCall) {
	newID, err := s.send(call.req, true)
	if err != nil {
		s.completeWithError(oldID, fmt.Errorf("sender: resend: %w", err))
		return
	}
	s.pending.rekey(oldID, newID)
	s.metrics.retries.Inc()
}

func (s *Sender) sendAck(msgIDs []int64) {
	if _, err := s.send(wrapRequest{buildMsgsAck(msgIDs)}, false); err != nil {
		log.Errorln(fmt.Errorf("sender: msgs_ack: %w", err))
	}
}

// wrapRequest adapts a pre-built *tl.Object (the sender's own service
// messages) to the tl.Request interface application code satisfies via
// generated method types.
type wrapRequest struct{ obj *tl.Object }

func (w wrapRequest) AsObject() *tl.Object   { return w.obj }
func (w wrapRequest) ResultType() tl.TypeRef { return "" }

func (s *Sender) completeWithError(msgID int64, err error) {
	if call, ok := s.pending.get(msgID); ok {
		s.pending.remove(msgID)
		select {
		case call.resultCh <- pendingResult{err: err}:
		default:
		}
	}
}

// Close tears down the receive loop and fails every pending call.
func (s *Sender) Close(err error) {
	if s.closeOnce {
		return
	}
	s.closeOnce = true
	if err == nil {
		err = fmt.Errorf("sender: closed")
	}
	s.closeErr = err
	close(s.closed)
	s.acker.stop()
	s.conn.Close()

	for _, call := range s.pending.dropAll() {
		select {
		case call.resultCh <- pendingResult{err: err}:
		default:
		}
	}
}

// recvLoop is the Sender's single reader: it owns the connection's read
// side for the Sender's lifetime, decoding and dispatching everything that
// arrives until the connection fails.
func (s *Sender) recvLoop() {
	log.Info("sender: recvLoop starting")

	quickAcks := 0
	for {
		payload, err := s.conn.Recv()
		if err != nil {
			s.Close(fmt.Errorf("sender: recv: %w", err))
			return
		}

		if transport.IsQuickAck(payload) {
			quickAcks++
			if quickAcks > s.maxQuickAcks {
				s.Close(fmt.Errorf("sender: exceeded %d consecutive quick acks", s.maxQuickAcks))
				return
			}
			continue
		}
		quickAcks = 0

		msg, err := s.state.Decrypt(payload)
		if err != nil {
			s.Close(fmt.Errorf("sender: decrypt: %w", err))
			return
		}
		s.state.MsgIDGen.Observe(msg.MsgID)

		decoded, err := s.codec.DecodeTopLevel(msg.Body)
		if err != nil {
			log.Errorln(fmt.Errorf("sender: decode top level: %w", err))
			continue
		}
		s.dispatch(msg.MsgID, decoded)
	}
}

// dispatch handles one decoded top-level value arriving on the connection,
// routing it by constructor kind (rpc_result, bad_server_salt,
// bad_msg_notification, new_session_created, msg_container, pong, msgs_ack,
// rpc_error, or an update-shaped object).
func (s *Sender) dispatch(msgID int64, decoded interface{}) {
	switch v := decoded.(type) {
	case []*tl.ContainerItem:
		s.metrics.containerUnwraps.Inc()
		for _, item := range v {
			s.dispatch(item.MsgID, item.Payload)
		}
	case *tl.RPCResult:
		s.acker.add(msgID)
		s.handleRPCResult(v)
	case *tl.Object:
		s.handleObject(msgID, v)
	case *tl.UnknownObject:
		log.Info("sender: discarding unknown constructor 0x%08x", uint32(v.ConstructorID))
	default:
		log.Info("sender: discarding unrecognized top-level value %T", v)
	}
}

func (s *Sender) handleObject(msgID int64, obj *tl.Object) {
	if updateShapedNames[obj.Name] {
		if s.updates != nil {
			s.updates.HandleUpdate(obj)
		}
		return
	}

	switch obj.Name {
	case "bad_server_salt":
		s.acker.add(msgID)
		s.handleBadServerSalt(obj)
	case "bad_msg_notification":
		s.acker.add(msgID)
		s.handleBadMsgNotification(obj)
	case "new_session_created":
		s.acker.add(msgID)
		salt, _ := obj.Get("server_salt")
		var saltBytes [8]byte
		if v, ok := salt.(int64); ok {
			putInt64LE(saltBytes[:], v)
		}
		s.state.SetServerSalt(saltBytes)
		log.Info("sender: new_session_created, salt updated")
	case "pong":
		s.acker.add(msgID)
		s.handlePong(obj)
	case "msgs_ack":
		s.handleMsgsAck(obj)
	default:
		s.acker.add(msgID)
		log.Debug("sender: discarding unhandled service object %s", obj.Name)
	}
}

func (s *Sender) handleRPCResult(res *tl.RPCResult) {
	call, ok := s.pending.get(res.ReqMsgID)
	if !ok {
		log.Debug("sender: rpc_result for unknown req_msg_id %d, discarding", res.ReqMsgID)
		return
	}

	if rpcErr, isErr := tryDecodeRPCError(res.Raw); isErr {
		s.handleRPCError(res.ReqMsgID, call, rpcErr)
		return
	}

	s.pending.remove(res.ReqMsgID)
	obj, err := s.codec.DecodeResult(call.req.ResultType(), res.Raw)
	if err != nil {
		select {
		case call.resultCh <- pendingResult{err: &mterr.DecodeError{Context: "rpc_result", Err: err}}:
		default:
		}
		return
	}

	switch v := obj.(type) {
	case *tl.Object:
		select {
		case call.resultCh <- pendingResult{obj: v}:
		default:
		}
	case *tl.UnknownObject:
		decErr := &mterr.DecodeError{
			Context: "rpc_result",
			Err:     fmt.Errorf("unknown constructor 0x%08x for expected type %q", uint32(v.ConstructorID), v.ExpectedType),
		}
		select {
		case call.resultCh <- pendingResult{err: decErr}:
		default:
		}
	default:
		// A bare Vector<X> result -- DecodeResult already consumed the
		// declared element type, so obj is a []interface{} rather than an
		// *Object. Wrap it so callers have one result shape to type-switch on.
		result := &tl.Object{Name: "Vector", Fields: map[string]interface{}{"value": obj}}
		select {
		case call.resultCh <- pendingResult{obj: result}:
		default:
		}
	}
}

// tryDecodeRPCError peeks raw for the rpc_error constructor without
// consuming it from the caller's perspective: it decodes a fresh reader so
// a non-error result is untouched by this check.
func tryDecodeRPCError(raw []byte) (*tl.Object, bool) {
	obj, err := serviceCodec.NewReader(raw).DecodeObject()
	if err != nil {
		return nil, false
	}
	o, ok := obj.(*tl.Object)
	if !ok || o.Name != "rpc_error" {
		return nil, false
	}
	return o, true
}

func (s *Sender) handleRPCError(msgID int64, call *pendingCall, rpcErr *tl.Object) {
	code, _ := rpcErr.Get("error_code")
	message, _ := rpcErr.Get("error_message")
	msgStr, _ := message.(string)

	if wait, ok := parseFloodWait(msgStr); ok &&
		wait <= s.cfg.MaxFloodWaitSeconds &&
		call.floodTries < s.cfg.MaxFloodRetries {
		call.floodTries++
		s.metrics.floodWaits.Inc()
		log.Info("sender: %s, sleeping %ds (retry %d/%d)", msgStr, wait, call.floodTries, s.cfg.MaxFloodRetries)
		time.AfterFunc(time.Duration(wait)*time.Second, func() {
			s.resend(msgID, call)
		})
		return
	}

	s.pending.remove(msgID)
	codeInt, _ := code.(int32)
	select {
	case call.resultCh <- pendingResult{err: &mterr.RpcError{Code: int(codeInt), Message: msgStr}}:
	default:
	}
}

func (s *Sender) handleBadServerSalt(obj *tl.Object) {
	newSalt, _ := obj.Get("new_server_salt")
	badMsgID, _ := obj.Get("bad_msg_id")

	var saltBytes [8]byte
	if v, ok := newSalt.(int64); ok {
		putInt64LE(saltBytes[:], v)
	}
	s.state.SetServerSalt(saltBytes)

	if id, ok := badMsgID.(int64); ok {
		if call, ok := s.pending.get(id); ok {
			s.resend(id, call)
			return
		}
	}
	for _, id := range s.pending.allInFlight() {
		if call, ok := s.pending.get(id); ok {
			s.resend(id, call)
		}
	}
}

// resynchronizableBadMsgCodes are the bad_msg_notification error codes that
// mean "your msg_id was too low/high/not divisible by four" -- recoverable
// by resynchronizing the generator and resending. Every other code is fatal
// to the one call that provoked it.
var resynchronizableBadMsgCodes = map[int32]bool{
	16: true, 17: true, 18: true, 19: true, 20: true,
	32: true, 33: true, 34: true, 35: true, 48: true,
}

func (s *Sender) handleBadMsgNotification(obj *tl.Object) {
	badMsgID, _ := obj.Get("bad_msg_id")
	code, _ := obj.Get("error_code")
	codeInt, _ := code.(int32)
	id, _ := badMsgID.(int64)

	call, ok := s.pending.get(id)
	if !ok {
		log.Debug("sender: bad_msg_notification for unknown msg_id %d", id)
		return
	}

	if resynchronizableBadMsgCodes[codeInt] {
		s.state.MsgIDGen.Observe(id)
		s.resend(id, call)
		return
	}

	s.pending.remove(id)
	select {
	case call.resultCh <- pendingResult{err: &mterr.BadMsgNotification{Code: int(codeInt)}}:
	default:
	}
}

func (s *Sender) handlePong(obj *tl.Object) {
	pingID, _ := obj.Get("ping_id")
	id, _ := pingID.(int64)
	if call, ok := s.pending.get(id); ok {
		s.pending.remove(id)
		select {
		case call.resultCh <- pendingResult{obj: obj}:
		default:
		}
		return
	}
	log.Debug("sender: pong for unknown ping_id %d, discarding", id)
}

func (s *Sender) handleMsgsAck(obj *tl.Object) {
	ids, _ := obj.Get("msg_ids")
	vec, ok := ids.([]interface{})
	if !ok {
		return
	}
	for _, v := range vec {
		id, ok := v.(int64)
		if !ok {
			continue
		}
		if call, ok := s.pending.get(id); ok {
			call.acked = true
		}
	}
}

// Ping sends a ping and blocks for its pong, the same way Invoke blocks for
// an rpc_result, since pong delivery is keyed by ping_id rather than
// req_msg_id.
func (s *Sender) Ping(ctx context.Context, pingID int64) error {
	call := &pendingCall{resultCh: make(chan pendingResult, 1)}
	s.pending.add(pingID, call)

	if _, err := s.send(wrapRequest{buildPing(pingID)}, false); err != nil {
		s.pending.remove(pingID)
		return fmt.Errorf("sender: send ping: %w", err)
	}

	select {
	case res := <-call.resultCh:
		return res.err
	case <-ctx.Done():
		s.pending.remove(pingID)
		return &mterr.Cancelled{MsgID: pingID}
	case <-s.closed:
		return s.closeErr
	}
}

func putInt64LE(b []byte, v int64) {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * i))
	}
}
