package protocol

// ReceivedAck is the reply to every applied Command or Parameter.
func ReceivedAck() Ack {
	return Ack{Status: StatusReceived}
}

// InvalidFormatError is the reply to every text frame that fails to decode.
func InvalidFormatError() Error {
	return Error{Message: MsgInvalidFormat}
}

// NewCommand builds a recording start/stop request.
func NewCommand(rec bool) Command {
	return Command{Rec: rec}
}

// NewParameter builds an amplitude change request.
func NewParameter(amplitude float64) Parameter {
	return Parameter{Amplitude: &amplitude}
}

// EmptyParameter builds a Parameter without an amplitude. The server
// acknowledges it without touching state.
func EmptyParameter() Parameter {
	return Parameter{}
}
