// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"bytes"
	"encoding/gob"
)

// Clone returns a deep copy of the snapshot, or nil if n is nil.
func (n *Network) Clone() *Network {
	if n == nil {
		return nil
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(n); err != nil {
		panic("config: clone encode: " + err.Error())
	}
	var clone Network
	if err := gob.NewDecoder(&buf).Decode(&clone); err != nil {
		panic("config: clone decode: " + err.Error())
	}
	return &clone
}
