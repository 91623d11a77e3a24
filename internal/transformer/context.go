package transformer

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/conneroisu/stt/internal/errors"
)

// encodeContext validates and encodes the template context.
func encodeContext(value any) (json.RawMessage, error) {
	if value == nil {
		return nil, nil
	}

	switch reflect.TypeOf(value).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return nil, errors.NewConfigurationError(
			errors.CodeInvalidContext,
			fmt.Sprintf("context of type %T cannot be passed to a template", value),
		)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, errors.NewConfigurationError(
			errors.CodeInvalidContext,
			fmt.Sprintf("context of type %T is not JSON-encodable", value),
		).WithCause(err)
	}
	return data, nil
}

// encodeValues encodes positional property values. A json.RawMessage is
// passed through untouched.
func encodeValues(values []any) ([]json.RawMessage, error) {
	encoded := make([]json.RawMessage, len(values))
	for i, v := range values {
		if raw, ok := v.(json.RawMessage); ok {
			if !json.Valid(raw) {
				return nil, errors.NewConfigurationError(
					errors.CodeInvalidValue,
					fmt.Sprintf("property value %d is not valid JSON", i),
				)
			}
			encoded[i] = raw
			continue
		}

		data, err := json.Marshal(v)
		if err != nil {
			return nil, errors.NewConfigurationError(
				errors.CodeInvalidValue,
				fmt.Sprintf("property value %d of type %T is not JSON-encodable", i, v),
			).WithCause(err)
		}
		encoded[i] = data
	}
	return encoded, nil
}
