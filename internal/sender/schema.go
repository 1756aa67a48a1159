// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// Package sender implements the encrypted RPC layer: Invoke sends a single
// TL request and waits for its matching rpc_result, while a background loop
// decodes everything arriving on the connection and dispatches it by
// message kind (bad_server_salt, bad_msg_notification, new_session_created,
// msg_container, pong, msgs_ack, rpc_error).
package sender

import "github.com/telecraft/mtproto/internal/tl"

// serviceSchema carries only the service-layer constructors the sender
// itself needs to recognize on the wire; an application's method schema is
// passed to New as text and parsed together with this one into the
// Sender's codec.
const serviceSchema = `
---types---
rpc_error#2144ca19 error_code:int error_message:string = RpcError;
bad_msg_notification#a7eff811 bad_msg_id:long bad_msg_seqno:int error_code:int = BadMsgNotification;
bad_server_salt#edab447b bad_msg_id:long bad_msg_seqno:int error_code:int new_server_salt:long = BadMsgNotification;
new_session_created#9ec20908 first_msg_id:long unique_id:long server_salt:long = NewSession;
msgs_ack#62d6b459 msg_ids:Vector<long> = MsgsAck;
pong#347773c5 msg_id:long ping_id:long = Pong;

---functions---
ping#7abe77ec ping_id:long = Pong;
`

var serviceCodec = tl.NewCodec(tl.NewRegistry(mustParseServiceSchema()))

func mustParseServiceSchema() *tl.Schema {
	schema, err := tl.ParseStrict(serviceSchema)
	if err != nil {
		panic("sender: service schema failed to parse: " + err.Error())
	}
	return schema
}

func serviceCombinator(name string) *tl.Combinator {
	c, ok := serviceCodec.Registry.ByName(name)
	if !ok {
		panic("sender: missing service combinator " + name)
	}
	return c
}

// buildMsgsAck renders a msgs_ack object acknowledging ids.
func buildMsgsAck(ids []int64) *tl.Object {
	vec := make([]interface{}, len(ids))
	for i, id := range ids {
		vec[i] = id
	}
	return &tl.Object{
		ID:   serviceCombinator("msgs_ack").ID,
		Name: "msgs_ack",
		Fields: map[string]interface{}{
			"msg_ids": vec,
		},
	}
}

// buildPing renders a ping function call carrying pingID.
func buildPing(pingID int64) *tl.Object {
	return &tl.Object{
		ID:   serviceCombinator("ping").ID,
		Name: "ping",
		Fields: map[string]interface{}{
			"ping_id": pingID,
		},
	}
}
