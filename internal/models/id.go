package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID непрозрачный идентификатор, который сервер присылает то числом, то строкой.
// Клиент не интерпретирует его, только хранит и подставляет в пути.
type ID string

// IsZero сообщает, что идентификатор не был передан
func (id ID) IsZero() bool {
	return id == ""
}

func (id ID) String() string {
	return string(id)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("failed to decode id: %w", err)
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("failed to decode id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON отдает числовые идентификаторы числом, остальные строкой
func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	var n json.Number = json.Number(id)
	if _, err := n.Int64(); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}
