package protocol

import (
	"fmt"
	"strconv"
)

// MessageType is the value of the "type" discriminator on the wire.
type MessageType string

// Client → server message types
const (
	TypeCommand   MessageType = "Command"
	TypeParameter MessageType = "Parameter"
)

// Server → client message types
const (
	TypeAck   MessageType = "Ack"
	TypeError MessageType = "Error"
)

// Fixed reply texts
const (
	StatusReceived   = "Received"
	MsgInvalidFormat = "Invalid message format"
)

// ClientMessage is a decoded inbound frame: Command or Parameter.
type ClientMessage interface {
	MessageType() MessageType
	String() string
	isClientMessage()
}

// ServerMessage is an outbound reply: Ack or Error.
type ServerMessage interface {
	MessageType() MessageType
	String() string
	isServerMessage()
}

// Command starts (Rec=true) or stops (Rec=false) recording.
type Command struct {
	Rec bool `json:"rec"`
}

func (Command) MessageType() MessageType { return TypeCommand }
func (Command) isClientMessage()         {}

func (c Command) String() string {
	return fmt.Sprintf("Command{rec=%t}", c.Rec)
}

// Parameter sets the amplitude. A nil Amplitude is a no-op.
type Parameter struct {
	Amplitude *float64 `json:"amplitude"`
}

func (Parameter) MessageType() MessageType { return TypeParameter }
func (Parameter) isClientMessage()         {}

func (p Parameter) String() string {
	if p.Amplitude == nil {
		return "Parameter{amplitude=<none>}"
	}
	return "Parameter{amplitude=" + strconv.FormatFloat(*p.Amplitude, 'g', -1, 64) + "}"
}

// Ack acknowledges a successfully applied message.
type Ack struct {
	Status string `json:"status"`
}

func (Ack) MessageType() MessageType { return TypeAck }
func (Ack) isServerMessage()         {}

func (a Ack) String() string {
	return fmt.Sprintf("Ack{status=%q}", a.Status)
}

// Error reports a message the server could not interpret.
type Error struct {
	Message string `json:"message"`
}

func (Error) MessageType() MessageType { return TypeError }
func (Error) isServerMessage()         {}

func (e Error) String() string {
	return fmt.Sprintf("Error{message=%q}", e.Message)
}
