package market

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const eventsABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "to", "type": "address"},
      {"indexed": false, "name": "value", "type": "int256"}
    ],
    "name": "withdraw",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "sender", "type": "address"},
      {"indexed": false, "name": "value", "type": "int256"}
    ],
    "name": "deposit",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "_from", "type": "address"},
      {"indexed": true, "name": "_to", "type": "address"},
      {"indexed": false, "name": "_value", "type": "int256"}
    ],
    "name": "sentCash",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "_from", "type": "address"},
      {"indexed": true, "name": "_to", "type": "address"},
      {"indexed": false, "name": "_value", "type": "int256"}
    ],
    "name": "Transfer",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "_owner", "type": "address"},
      {"indexed": true, "name": "_spender", "type": "address"},
      {"indexed": false, "name": "value", "type": "int256"}
    ],
    "name": "Approval",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "sender", "type": "address"},
      {"indexed": true, "name": "market", "type": "bytes32"},
      {"indexed": false, "name": "cashPayout", "type": "int256"},
      {"indexed": false, "name": "cashBalance", "type": "int256"},
      {"indexed": false, "name": "shares", "type": "int256"},
      {"indexed": false, "name": "timestamp", "type": "int256"}
    ],
    "name": "payout",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "sender", "type": "address"},
      {"indexed": true, "name": "marketID", "type": "bytes32"},
      {"indexed": true, "name": "topic", "type": "bytes32"},
      {"indexed": false, "name": "branch", "type": "bytes32"},
      {"indexed": false, "name": "marketCreationFee", "type": "int256"},
      {"indexed": false, "name": "eventBond", "type": "int256"},
      {"indexed": false, "name": "timestamp", "type": "int256"}
    ],
    "name": "marketCreated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "sender", "type": "address"},
      {"indexed": true, "name": "branch", "type": "bytes32"},
      {"indexed": true, "name": "marketID", "type": "bytes32"},
      {"indexed": false, "name": "tradingFee", "type": "int256"},
      {"indexed": false, "name": "timestamp", "type": "int256"}
    ],
    "name": "tradingFeeUpdated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "market", "type": "bytes32"},
      {"indexed": true, "name": "sender", "type": "address"},
      {"indexed": false, "name": "type", "type": "int256"},
      {"indexed": false, "name": "price", "type": "int256"},
      {"indexed": false, "name": "amount", "type": "int256"},
      {"indexed": false, "name": "outcome", "type": "int256"},
      {"indexed": false, "name": "tradeid", "type": "bytes32"},
      {"indexed": false, "name": "isShortAsk", "type": "int256"}
    ],
    "name": "log_add_tx",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "market", "type": "bytes32"},
      {"indexed": true, "name": "sender", "type": "address"},
      {"indexed": false, "name": "price", "type": "int256"},
      {"indexed": false, "name": "amount", "type": "int256"},
      {"indexed": false, "name": "tradeid", "type": "bytes32"},
      {"indexed": false, "name": "outcome", "type": "int256"},
      {"indexed": false, "name": "type", "type": "int256"},
      {"indexed": false, "name": "cashRefund", "type": "int256"}
    ],
    "name": "log_cancel",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "market", "type": "bytes32"},
      {"indexed": true, "name": "sender", "type": "address"},
      {"indexed": true, "name": "owner", "type": "address"},
      {"indexed": false, "name": "type", "type": "int256"},
      {"indexed": false, "name": "price", "type": "int256"},
      {"indexed": false, "name": "amount", "type": "int256"},
      {"indexed": false, "name": "tradeid", "type": "bytes32"},
      {"indexed": false, "name": "outcome", "type": "int256"}
    ],
    "name": "log_fill_tx",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "market", "type": "bytes32"},
      {"indexed": true, "name": "sender", "type": "address"},
      {"indexed": true, "name": "owner", "type": "address"},
      {"indexed": false, "name": "price", "type": "int256"},
      {"indexed": false, "name": "amount", "type": "int256"},
      {"indexed": false, "name": "tradeid", "type": "bytes32"},
      {"indexed": false, "name": "outcome", "type": "int256"}
    ],
    "name": "log_short_fill_tx",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "user", "type": "address"},
      {"indexed": true, "name": "event", "type": "bytes32"},
      {"indexed": false, "name": "outcome", "type": "int256"},
      {"indexed": false, "name": "oldrep", "type": "int256"},
      {"indexed": false, "name": "repchange", "type": "int256"},
      {"indexed": false, "name": "newafterrep", "type": "int256"},
      {"indexed": false, "name": "p", "type": "int256"},
      {"indexed": false, "name": "reportValue", "type": "int256"},
      {"indexed": false, "name": "penalizedUpTo", "type": "int256"},
      {"indexed": false, "name": "timestamp", "type": "int256"}
    ],
    "name": "penalize",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "branch", "type": "bytes32"},
      {"indexed": true, "name": "sender", "type": "address"},
      {"indexed": false, "name": "penalizedFrom", "type": "int256"},
      {"indexed": false, "name": "penalizedUpTo", "type": "int256"},
      {"indexed": false, "name": "repLost", "type": "int256"},
      {"indexed": false, "name": "newRepBalance", "type": "int256"},
      {"indexed": false, "name": "timestamp", "type": "int256"}
    ],
    "name": "penalizationCaughtUp",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "sender", "type": "address"},
      {"indexed": true, "name": "event", "type": "bytes32"},
      {"indexed": false, "name": "salt", "type": "bytes32"},
      {"indexed": false, "name": "report", "type": "int256"},
      {"indexed": false, "name": "ethics", "type": "int256"},
      {"indexed": false, "name": "timestamp", "type": "int256"}
    ],
    "name": "submittedReport",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "sender", "type": "address"},
      {"indexed": true, "name": "event", "type": "bytes32"},
      {"indexed": false, "name": "reportHash", "type": "bytes32"},
      {"indexed": false, "name": "encryptedReport", "type": "bytes32"},
      {"indexed": false, "name": "encryptedSalt", "type": "bytes32"},
      {"indexed": false, "name": "ethics", "type": "int256"},
      {"indexed": false, "name": "timestamp", "type": "int256"}
    ],
    "name": "submittedReportHash",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "branch", "type": "bytes32"},
      {"indexed": true, "name": "sender", "type": "address"},
      {"indexed": true, "name": "reporter", "type": "address"},
      {"indexed": false, "name": "repSlashed", "type": "int256"},
      {"indexed": false, "name": "slasherBalance", "type": "int256"},
      {"indexed": false, "name": "timestamp", "type": "int256"}
    ],
    "name": "slashedRep",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "branch", "type": "bytes32"},
      {"indexed": true, "name": "sender", "type": "address"},
      {"indexed": false, "name": "cashFeesCollected", "type": "int256"},
      {"indexed": false, "name": "newCashBalance", "type": "int256"},
      {"indexed": false, "name": "lastPeriodRepBalance", "type": "int256"},
      {"indexed": false, "name": "repGain", "type": "int256"},
      {"indexed": false, "name": "newRepBalance", "type": "int256"},
      {"indexed": false, "name": "notReportingBond", "type": "int256"},
      {"indexed": false, "name": "totalReportingRep", "type": "int256"},
      {"indexed": false, "name": "period", "type": "int256"},
      {"indexed": false, "name": "timestamp", "type": "int256"}
    ],
    "name": "collectedFees",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "sender", "type": "address"},
      {"indexed": false, "name": "cashBalance", "type": "int256"},
      {"indexed": false, "name": "repBalance", "type": "int256"},
      {"indexed": false, "name": "timestamp", "type": "int256"}
    ],
    "name": "fundedAccount",
    "type": "event"
  }
]`

var (
	eventsABI     abi.ABI
	eventsABIOnce sync.Once
	eventsABIErr  error
)

// EventsABI returns the parsed input layout of the platform events. The event
// IDs it derives are not what the contracts emit as topic 0.
func EventsABI() (abi.ABI, error) {
	eventsABIOnce.Do(func() {
		eventsABI, eventsABIErr = abi.JSON(strings.NewReader(eventsABIJSON))
	})
	return eventsABI, eventsABIErr
}
