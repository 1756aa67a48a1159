// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// Package authkey implements the unencrypted Diffie-Hellman handshake that
// produces an auth_key: req_pq_multi through set_client_DH_params.
package authkey

import "github.com/telecraft/mtproto/internal/tl"

// handshakeSchema carries only the combinators the DH exchange itself
// needs. Constructor ids are MTProto's well-known, publicly documented
// values (core.tl), not anything derived locally.
const handshakeSchema = `
---types---
resPQ#05162463 nonce:int128 server_nonce:int128 pq:bytes server_public_key_fingerprints:Vector<long> = ResPQ;
p_q_inner_data#83c95aec pq:bytes p:bytes q:bytes nonce:int128 server_nonce:int128 new_nonce:int256 = P_Q_inner_data;
server_DH_params_fail#79cb045d nonce:int128 server_nonce:int128 new_nonce_hash:int128 = Server_DH_Params;
server_DH_params_ok#d0e8075c nonce:int128 server_nonce:int128 encrypted_answer:bytes = Server_DH_Params;
server_DH_inner_data#b5890dba nonce:int128 server_nonce:int128 g:int dh_prime:bytes g_a:bytes server_time:int = Server_DH_inner_data;
client_DH_inner_data#6643b654 nonce:int128 server_nonce:int128 retry_id:long g_b:bytes = Client_DH_Inner_Data;
dh_gen_ok#3bcbf734 nonce:int128 server_nonce:int128 new_nonce_hash1:int128 = Set_client_DH_params_answer;
dh_gen_retry#46dbcebf nonce:int128 server_nonce:int128 new_nonce_hash2:int128 = Set_client_DH_params_answer;
dh_gen_fail#a69dae02 nonce:int128 server_nonce:int128 new_nonce_hash3:int128 = Set_client_DH_params_answer;

---functions---
req_pq_multi#be7e8ef1 nonce:int128 = ResPQ;
req_DH_params#d712e4be nonce:int128 server_nonce:int128 p:bytes q:bytes public_key_fingerprint:long encrypted_data:bytes = Server_DH_Params;
set_client_DH_params#f5045f1f nonce:int128 server_nonce:int128 encrypted_data:bytes = Set_client_DH_params_answer;
`

var codec = tl.NewCodec(tl.NewRegistry(mustParseSchema()))

func mustParseSchema() *tl.Schema {
	schema, err := tl.ParseStrict(handshakeSchema)
	if err != nil {
		panic("authkey: handshake schema failed to parse: " + err.Error())
	}
	return schema
}

func combinator(name string) *tl.Combinator {
	c, ok := codec.Registry.ByName(name)
	if !ok {
		panic("authkey: missing combinator " + name)
	}
	return c
}
