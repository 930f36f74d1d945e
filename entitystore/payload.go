package entitystore

import (
	"errors"

	jsoniter "github.com/json-iterator/go"
)

var (
	// ErrEncodingPayloadFailed is returned when Fields could not be serialized.
	ErrEncodingPayloadFailed = errors.New("encoding payload failed")

	// ErrDecodingPayloadFailed is returned when a stored payload is not a JSON object of strings.
	ErrDecodingPayloadFailed = errors.New("decoding payload failed")
)

// payloadCodec sorts map keys, so equal Fields always encode to identical bytes.
var payloadCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// EncodeFields serializes fields into the JSON object stored as an event payload.
func EncodeFields(fields Fields) ([]byte, error) {
	if fields == nil {
		fields = Fields{}
	}

	payload, err := payloadCodec.Marshal(fields)
	if err != nil {
		return nil, errors.Join(ErrEncodingPayloadFailed, err)
	}

	return payload, nil
}

// DecodeFields parses a stored event payload back into Fields.
func DecodeFields(payload []byte) (Fields, error) {
	var fields Fields

	if err := payloadCodec.Unmarshal(payload, &fields); err != nil {
		return nil, errors.Join(ErrDecodingPayloadFailed, err)
	}

	if fields == nil {
		fields = Fields{}
	}

	return fields, nil
}

// decodeEvent converts a StoredEvent into an Event.
func decodeEvent(stored StoredEvent) (Event, error) {
	payload, err := DecodeFields(stored.PayloadJSON)
	if err != nil {
		return Event{}, err
	}

	return Event{
		ID:       stored.ID,
		EntityID: stored.EntityID,
		Type:     stored.Type,
		Payload:  payload,
	}, nil
}
