// Package proto implements the victordb wire protocol : a fixed 4-byte
// big-endian frame header followed by a CBOR payload. The header packs the
// message opcode in the top 4 bits and the payload length in the low 28 bits,
// so a payload can never exceed 2^28-1 bytes.
package proto

// Opcode identifies the message kind carried by a frame.
type Opcode uint8

const (
	OpInsert       Opcode = 0x01
	OpInsertResult Opcode = 0x02
	OpDelete       Opcode = 0x03
	OpDeleteResult Opcode = 0x04
	OpSearch       Opcode = 0x05
	OpMatchResult  Opcode = 0x06
	OpError        Opcode = 0x07
	OpPut          Opcode = 0x08
	OpPutResult    Opcode = 0x09
	OpGet          Opcode = 0x0A
	OpGetResult    Opcode = 0x0B
	OpDel          Opcode = 0x0C
	OpDelResult    Opcode = 0x0D
)

var opcodeNames = map[Opcode]string{
	OpInsert:       "INSERT",
	OpInsertResult: "INSERT_RESULT",
	OpDelete:       "DELETE",
	OpDeleteResult: "DELETE_RESULT",
	OpSearch:       "SEARCH",
	OpMatchResult:  "MATCH_RESULT",
	OpError:        "ERROR",
	OpPut:          "PUT",
	OpPutResult:    "PUT_RESULT",
	OpGet:          "GET",
	OpGetResult:    "GET_RESULT",
	OpDel:          "DEL",
	OpDelResult:    "DEL_RESULT",
}

func (op Opcode) String() string {
	name, ok := opcodeNames[op]
	if !ok {
		return "UNKNOWN"
	}
	return name
}
