package history

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"marketScope/internal/model"
)

// rawLogFromTypes converts a go-ethereum log to the node wire form the codec
// decodes.
func rawLogFromTypes(log types.Log) model.RawLog {
	topics := make([]string, 0, len(log.Topics))
	for _, topic := range log.Topics {
		topics = append(topics, topic.Hex())
	}
	return model.RawLog{
		Address:          log.Address.Hex(),
		Topics:           topics,
		Data:             hexutil.Encode(log.Data),
		BlockNumber:      hexutil.Uint64(log.BlockNumber),
		LogIndex:         hexutil.Uint64(log.Index),
		BlockHash:        log.BlockHash.Hex(),
		TransactionHash:  log.TxHash.Hex(),
		TransactionIndex: hexutil.Uint64(log.TxIndex),
		Removed:          log.Removed,
	}
}
