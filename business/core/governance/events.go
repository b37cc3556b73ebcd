package governance

import (
	"fmt"

	"github.com/ardanlabs/poagov/foundation/evmlite"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// NoEventName labels a log that does not match any event in the ABI.
const NoEventName = "No Event Name"

// Event is a decoded contract log.
type Event struct {
	Name    string         `json:"event"`
	Address common.Address `json:"address"`
	Index   uint           `json:"logIndex"`
	Args    map[string]any `json:"args"`
}

// DecodeLogs turns receipt logs into events. Logs the ABI does not describe,
// or that fail to decode, are kept with the NoEventName label and their raw
// topics and data.
func DecodeLogs(a abi.ABI, logs []evmlite.Log) []Event {
	events := make([]Event, 0, len(logs))
	for _, log := range logs {
		events = append(events, decodeLog(a, log))
	}
	return events
}

func decodeLog(a abi.ABI, log evmlite.Log) Event {
	unknown := Event{
		Name:    NoEventName,
		Address: log.Address,
		Index:   uint(log.Index),
		Args: map[string]any{
			"topics": log.Topics,
			"data":   hexutil.Encode(log.Data),
		},
	}

	if len(log.Topics) == 0 {
		return unknown
	}

	ev, err := a.EventByID(log.Topics[0])
	if err != nil {
		return unknown
	}

	args := make(map[string]any)
	if err := ev.Inputs.UnpackIntoMap(args, log.Data); err != nil {
		return unknown
	}

	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}

	if err := abi.ParseTopicsIntoMap(args, indexed, log.Topics[1:]); err != nil {
		return unknown
	}

	return Event{
		Name:    ev.Name,
		Address: log.Address,
		Index:   uint(log.Index),
		Args:    args,
	}
}

// EncodeEvent produces the topics and data a contract emits for the named
// event. The values are given in the order the event declares its inputs.
func EncodeEvent(a abi.ABI, name string, values ...any) ([]common.Hash, []byte, error) {
	ev, exists := a.Events[name]
	if !exists {
		return nil, nil, fmt.Errorf("event %q: %w", name, ErrUnknownMethod)
	}

	if len(values) != len(ev.Inputs) {
		return nil, nil, fmt.Errorf("event %q: %w: got %d, want %d", name, ErrArgumentCount, len(values), len(ev.Inputs))
	}

	topics := []common.Hash{ev.ID}
	var data []any

	for i, arg := range ev.Inputs {
		v, err := Coerce(arg.Type, values[i])
		if err != nil {
			return nil, nil, fmt.Errorf("event %q: %s: %w", name, arg.Name, err)
		}

		if !arg.Indexed {
			data = append(data, v)
			continue
		}

		t, err := abi.MakeTopics([]any{v})
		if err != nil {
			return nil, nil, fmt.Errorf("event %q: %s: %w", name, arg.Name, err)
		}
		topics = append(topics, t[0][0])
	}

	packed, err := ev.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		return nil, nil, fmt.Errorf("event %q: %w", name, err)
	}

	return topics, packed, nil
}
