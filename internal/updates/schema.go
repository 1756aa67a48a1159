// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// Package updates implements the updates engine: gap detection over the
// pts/qts and per-channel pts counters carried by incoming update objects
// (seq and date are recorded, not gap-checked), and the
// getDifference/getChannelDifference resync loops that repair a detected
// gap.
package updates

import "github.com/telecraft/mtproto/internal/tl"

// schema carries the envelope constructors the gap-detection algorithm
// itself needs to inspect (pts/qts/seq/channel_id bookkeeping fields) plus
// the getDifference/getChannelDifference/getState call shapes. Message,
// User, and Chat are modeled only as minimal stand-ins: full entity
// modeling is schema-generation territory, out of scope here, and the
// engine's job is to move these objects through gap detection, not to
// interpret their contents.
const schema = `
---types---
message#38116ee0 id:int peer_id:long date:int text:string = Message;
user#d3bc4b7a id:long first_name:string = User;
chat#3bda1bde id:long title:string = Chat;

updatesTooLong#e317af7e = Updates;
updateShortMessage#913c3af8 id:int user_id:long message:string pts:int pts_count:int date:int = Updates;
updateShortChatMessage#16812688 id:int from_id:long chat_id:long message:string pts:int pts_count:int date:int = Updates;
updateShort#78d4dec1 update:Update date:int = Updates;
updates#74ae4240 updates:Vector<Update> users:Vector<User> chats:Vector<Chat> date:int seq:int = Updates;
updatesCombined#725b04c3 updates:Vector<Update> users:Vector<User> chats:Vector<Chat> date:int seq_start:int seq:int = Updates;

updateNewMessage#1f2b0afd message:Message pts:int pts_count:int = Update;
updateNewChannelMessage#62ba04d9 channel_id:long message:Message pts:int pts_count:int = Update;
updateChannelTooLong#108d941f channel_id:long pts:int = Update;
updateNewEncryptedMessage#314f57b9 qts:int qts_count:int = Update;
updateReadHistoryInbox#9c974fdf peer_id:long max_id:int = Update;

updates.differenceEmpty#5d75a138 date:int seq:int = updates.Difference;
updates.difference#00f49ca0 new_messages:Vector<Message> other_updates:Vector<Update> chats:Vector<Chat> users:Vector<User> state:updates.State = updates.Difference;
updates.differenceSlice#a8fb1981 new_messages:Vector<Message> other_updates:Vector<Update> chats:Vector<Chat> users:Vector<User> intermediate_state:updates.State = updates.Difference;
updates.differenceTooLong#4afe8f6d pts:int = updates.Difference;
updates.state#a56c2a3e pts:int qts:int date:int seq:int unread_count:int = updates.State;

updates.channelDifferenceEmpty#3e11affb final:Bool pts:int timeout:int = updates.ChannelDifference;
updates.channelDifference#2064674e final:Bool pts:int timeout:int new_messages:Vector<Message> other_updates:Vector<Update> chats:Vector<Chat> users:Vector<User> = updates.ChannelDifference;
updates.channelDifferenceTooLong#a4bcc6fe final:Bool pts:int timeout:int = updates.ChannelDifference;

---functions---
updates.getDifference#25939651 pts:int date:int qts:int = updates.Difference;
updates.getChannelDifference#3173d782 channel_id:long pts:int limit:int = updates.ChannelDifference;
updates.getState#edd4882a = updates.State;
`

var schemaCodec = tl.NewCodec(tl.NewRegistry(mustParseSchema()))

func mustParseSchema() *tl.Schema {
	s, err := tl.ParseStrict(schema)
	if err != nil {
		panic("updates: schema failed to parse: " + err.Error())
	}
	return s
}

func combinator(name string) *tl.Combinator {
	c, ok := schemaCodec.Registry.ByName(name)
	if !ok {
		panic("updates: missing combinator " + name)
	}
	return c
}
