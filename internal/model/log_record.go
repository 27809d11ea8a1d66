package model

import "github.com/ethereum/go-ethereum/common/hexutil"

// RawLog is a log record as delivered by the node (eth_getFilterChanges,
// eth_getLogs or a "logs" subscription notification).
type RawLog struct {
	Address          string         `json:"address"`
	Topics           []string       `json:"topics"`
	Data             string         `json:"data"`
	BlockNumber      hexutil.Uint64 `json:"blockNumber"`
	LogIndex         hexutil.Uint64 `json:"logIndex"`
	BlockHash        string         `json:"blockHash"`
	TransactionHash  string         `json:"transactionHash"`
	TransactionIndex hexutil.Uint64 `json:"transactionIndex"`
	Removed          bool           `json:"removed"`
}

// Topic0 returns the event signature topic, or "" for anonymous logs.
func (l RawLog) Topic0() string {
	if len(l.Topics) == 0 {
		return ""
	}
	return l.Topics[0]
}
