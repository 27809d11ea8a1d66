package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// BlockHeader is a new-block notification. Poll mode delivers a bare block
// hash, push mode delivers the full header object; only Hash is guaranteed.
type BlockHeader struct {
	Hash       string         `json:"hash"`
	Number     hexutil.Uint64 `json:"number"`
	ParentHash string         `json:"parentHash,omitempty"`
	Timestamp  hexutil.Uint64 `json:"timestamp"`
	Miner      string         `json:"miner,omitempty"`
	GasUsed    hexutil.Uint64 `json:"gasUsed"`
	GasLimit   hexutil.Uint64 `json:"gasLimit"`
}

// UnmarshalJSON accepts a header object or a bare hash string.
func (h *BlockHeader) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var hash string
		if err := json.Unmarshal(data, &hash); err != nil {
			return err
		}
		*h = BlockHeader{Hash: hash}
		return nil
	}
	type Alias BlockHeader
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Hash == "" {
		return fmt.Errorf("block header missing hash")
	}
	*h = BlockHeader(a)
	return nil
}
