package chain

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
)

// ParseArray extracts an array of StackItems from a parent StackItem.
func ParseArray(item StackItem) ([]StackItem, error) {
	if item.Type != "Array" && item.Type != "Struct" {
		return nil, fmt.Errorf("expected Array or Struct, got %s", item.Type)
	}

	var items []StackItem
	if err := json.Unmarshal(item.Value, &items); err != nil {
		return nil, fmt.Errorf("unmarshal array: %w", err)
	}
	return items, nil
}

// ParseInteger parses an Integer stack item.
func ParseInteger(item StackItem) (*big.Int, error) {
	if item.Type != "Integer" {
		return nil, fmt.Errorf("unexpected type: %s", item.Type)
	}
	var value string
	if err := json.Unmarshal(item.Value, &value); err != nil {
		return nil, err
	}
	n, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", value)
	}
	return n, nil
}

// ParseBoolean parses a Boolean stack item.
func ParseBoolean(item StackItem) (bool, error) {
	if item.Type != "Boolean" {
		return false, fmt.Errorf("unexpected type: %s", item.Type)
	}
	var value bool
	if err := json.Unmarshal(item.Value, &value); err != nil {
		return false, err
	}
	return value, nil
}

// ParseByteArray parses a ByteString or Buffer stack item.
func ParseByteArray(item StackItem) ([]byte, error) {
	switch item.Type {
	case "ByteString", "Buffer":
		var value string
		if err := json.Unmarshal(item.Value, &value); err != nil {
			return nil, err
		}
		return decodeItemBytes(value)
	case "Null":
		return nil, nil
	}
	return nil, fmt.Errorf("unexpected type: %s", item.Type)
}

// ParseString parses a UTF-8 string from a ByteString or Buffer stack item.
func ParseString(item StackItem) (string, error) {
	if item.Type == "Null" {
		return "", nil
	}
	b, err := ParseByteArray(item)
	if err != nil {
		return "", fmt.Errorf("unexpected type for string: %s", item.Type)
	}
	return string(b), nil
}

// ParseHash160 parses a script hash from a ByteString stack item,
// returning the big-endian 0x-prefixed form.
func ParseHash160(item StackItem) (string, error) {
	b, err := ParseByteArray(item)
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", nil
	}
	reversed := make([]byte, len(b))
	for i, v := range b {
		reversed[len(b)-1-i] = v
	}
	return "0x" + hex.EncodeToString(reversed), nil
}

// decodeItemBytes decodes stack item byte values. Nodes emit base64;
// some tooling emits hex, so fall back when base64 rejects the input.
func decodeItemBytes(value string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(value); err == nil {
		return b, nil
	}
	return hex.DecodeString(value)
}
