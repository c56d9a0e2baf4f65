package docstore

import (
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

// TagName is the struct tag Decode reads field names from.
const TagName = "doc"

var timeType = reflect.TypeOf(time.Time{})

// Decode maps a document body onto out, a pointer to a struct tagged with
// `doc:"..."`. Numbers are converted across widths, and RFC 3339 strings are
// accepted for time fields so cached snapshots decode like live ones.
func Decode(data map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          TagName,
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			timeHook,
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := dec.Decode(data); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

// timeHook passes time values through and turns unresolved sentinels into
// the zero time.
func timeHook(from, to reflect.Type, data any) (any, error) {
	if to != timeType {
		return data, nil
	}
	switch v := data.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return time.Time{}, nil
		}
		return *v, nil
	case Sentinel:
		return time.Time{}, nil
	}
	return data, nil
}
