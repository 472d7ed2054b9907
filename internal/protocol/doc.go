// Package protocol implements the audiows control protocol.
//
// Every frame is a JSON text message with a "type" discriminator and a
// "data" payload:
//
//	{"type":"Command","data":{"rec":true}}
//	{"type":"Parameter","data":{"amplitude":2.5}}
//	{"type":"Ack","data":{"status":"Received"}}
//	{"type":"Error","data":{"message":"Invalid message format"}}
//
// # Messages
//
// Clients send a ClientMessage (Command or Parameter); the server answers each
// one with a ServerMessage (Ack or Error). Both are closed sets: the marker
// methods are unexported so only this package can add variants.
//
// A Parameter whose amplitude is omitted or null is valid and acknowledged,
// but changes nothing.
//
// # Decoding
//
// Decode never panics. Unknown types, malformed JSON, a missing or non-object
// "data", a missing "rec", or a value of the wrong JSON type all produce a
// *DecodeError. Field names are matched exactly; unknown members are ignored.
//
//	msg, err := protocol.Decode(frame)
//	var de *protocol.DecodeError
//	if errors.As(err, &de) {
//	    reply, _ := protocol.Encode(protocol.InvalidFormatError())
//	    ...
//	}
//
// # Handlers
//
// Dispatch routes a decoded message to ApplyCommand or ApplyParameter, which
// take the state cell for the duration of the field write only. Log events are
// emitted after the cell is released.
package protocol
