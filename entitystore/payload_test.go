package entitystore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore"
)

func Test_EncodeFields_Sorts_Keys(t *testing.T) {
	payload, err := EncodeFields(Fields{"name": "w0-1", "age": "37"})

	require.NoError(t, err)
	assert.JSONEq(t, `{"age":"37","name":"w0-1"}`, string(payload))
	assert.Equal(t, `{"age":"37","name":"w0-1"}`, string(payload))
}

func Test_EncodeFields_Of_Nil_Is_Empty_Object(t *testing.T) {
	payload, err := EncodeFields(nil)

	require.NoError(t, err)
	assert.Equal(t, `{}`, string(payload))
}

func Test_DecodeFields(t *testing.T) {
	fields, err := DecodeFields([]byte(`{"name":"w0-1","age":"37"}`))

	require.NoError(t, err)
	assert.Equal(t, Fields{"name": "w0-1", "age": "37"}, fields)
}

func Test_DecodeFields_Of_Null_Is_Empty(t *testing.T) {
	fields, err := DecodeFields([]byte(`null`))

	require.NoError(t, err)
	assert.NotNil(t, fields)
	assert.Empty(t, fields)
}

func Test_DecodeFields_Rejects_Invalid_Payloads(t *testing.T) {
	for _, payload := range []string{`{"age":37}`, `["a"]`, `{`, ``} {
		t.Run(payload, func(t *testing.T) {
			_, err := DecodeFields([]byte(payload))

			assert.ErrorIs(t, err, ErrDecodingPayloadFailed)
		})
	}
}
