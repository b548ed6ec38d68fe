package internal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSizeBytes(t *testing.T) {
	cmd := Command{
		Type:     CommandTCompareAndSet,
		Key:      "counter",
		Expected: []byte{1, 2},
		Value:    []byte{3, 4, 5},
	}
	require.Equal(t, 9+7+2+3, cmd.SizeBytes())
	require.Len(t, cmd.Serialize(), cmd.SizeBytes())
}

func TestSerializeDeserialize(t *testing.T) {
	tests := []struct {
		name    string
		command Command
	}{
		{
			name:    "compare and set",
			command: Command{Type: CommandTCompareAndSet, Key: "k", Expected: []byte("old"), Value: []byte("new")},
		},
		{
			name:    "compare and set from empty",
			command: Command{Type: CommandTCompareAndSet, Key: "k", Value: []byte("first")},
		},
		{
			name:    "compare and set to empty",
			command: Command{Type: CommandTCompareAndSet, Key: "k", Expected: []byte("last")},
		},
		{
			name:    "set",
			command: Command{Type: CommandTSet, Key: "key with spaces", Value: []byte{0, 0, 1}},
		},
		{
			name:    "delete with empty key",
			command: Command{Type: CommandTDelete},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Command
			require.NoError(t, got.Deserialize(tt.command.Serialize()))
			require.Equal(t, tt.command, got)
		})
	}
}

func TestDeserializeErrors(t *testing.T) {
	var cmd Command
	require.Error(t, cmd.Deserialize(nil))
	require.Error(t, cmd.Deserialize([]byte{0, 0, 0}))

	// key length claims more bytes than present
	data := (&Command{Type: CommandTSet, Key: "abc"}).Serialize()
	require.Error(t, cmd.Deserialize(data[:len(data)-1]))
}

func TestCommandTypeString(t *testing.T) {
	require.Equal(t, "CompareAndSet", CommandTCompareAndSet.String())
	require.Equal(t, "Unknown(9)", CommandType(9).String())
	require.Equal(t, "Size", QueryTSize.String())
}
