package internal

import (
	"encoding/binary"
	"fmt"
)

// CommandType defines the possible register operations for the state machine.
type CommandType uint8

const (
	CommandTSet           CommandType = iota // Unconditionally write a register.
	CommandTCompareAndSet                    // Write a register if it holds the expected value.
	CommandTDelete                           // Reset a register to empty.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTSet:
		return "Set"
	case CommandTCompareAndSet:
		return "CompareAndSet"
	case CommandTDelete:
		return "Delete"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// headerSize is Type + KeyLen + ExpectedLen
const headerSize = 1 + 4 + 4

// Command is a single entry in the raft log.
// Expected is only read for CommandTCompareAndSet.
type Command struct {
	Type     CommandType
	Key      string
	Expected []byte
	Value    []byte
}

// SizeBytes returns the exact number of bytes needed to serialize this command
func (command *Command) SizeBytes() int {
	return headerSize + len(command.Key) + len(command.Expected) + len(command.Value)
}

// Serialize serializes a command into a byte array with the format:
// 1 byte for operation type,
// 4 bytes for key length (big endian),
// 4 bytes for expected value length (big endian),
// N bytes for key data,
// N bytes for expected value data,
// N bytes for value data (rest of the buffer)
func (command *Command) Serialize() []byte {
	result := make([]byte, command.SizeBytes())

	result[0] = byte(command.Type)
	binary.BigEndian.PutUint32(result[1:5], uint32(len(command.Key)))
	binary.BigEndian.PutUint32(result[5:9], uint32(len(command.Expected)))

	off := headerSize
	off += copy(result[off:], command.Key)
	off += copy(result[off:], command.Expected)
	copy(result[off:], command.Value)

	return result
}

// Deserialize extracts all Command fields from a byte array.
// Empty expected and value sections decode as nil.
func (command *Command) Deserialize(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for command")
	}

	command.Type = CommandType(data[0])
	keyLen := int(binary.BigEndian.Uint32(data[1:5]))
	expectedLen := int(binary.BigEndian.Uint32(data[5:9]))

	if len(data) < headerSize+keyLen+expectedLen {
		return fmt.Errorf("data too short for key of length %d and expected value of length %d", keyLen, expectedLen)
	}

	off := headerSize
	command.Key = string(data[off : off+keyLen])
	off += keyLen

	command.Expected = cloneOrNil(data[off : off+expectedLen])
	off += expectedLen

	command.Value = cloneOrNil(data[off:])
	return nil
}

func cloneOrNil(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
