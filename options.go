package plist

import "errors"

// optionReceiver is implemented by Decoder and Encoder. Each setter reports
// whether the receiver consumed the option.
type optionReceiver interface {
	unmarshalerSetLax(bool) (bool, error)
	generatorSetIndent(string) (bool, error)
	encoderSetFormat(int) (bool, error)
}

type Option func(optionReceiver) (bool, error)

var optionInvalidError = errors.New("plist: option is unsupported in this context")

// Lax permits strings to decode into numeric, boolean and time fields. Text
// property lists have no native syntax for those kinds, so everything in them
// arrives as a string.
func Lax() Option {
	return func(o optionReceiver) (bool, error) {
		return o.unmarshalerSetLax(true)
	}
}

// Indent turns on pretty-printing; i is emitted once per nesting level.
func Indent(i string) Option {
	return func(o optionReceiver) (bool, error) {
		return o.generatorSetIndent(i)
	}
}

// Format selects the output format of an Encoder.
func Format(f int) Option {
	return func(o optionReceiver) (bool, error) {
		return o.encoderSetFormat(f)
	}
}

func applyOptions(r optionReceiver, opts []Option) error {
	for _, opt := range opts {
		ok, err := opt(r)
		if err != nil {
			return err
		}
		if !ok {
			return optionInvalidError
		}
	}
	return nil
}
