package codec

import (
	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"simexchange/internal/model"
	"simexchange/pkg/exception"
)

// BarPayloadVersion prefixes every encoded bar.
const BarPayloadVersion byte = 1

// EncodeBar appends a versioned JSON payload of the bar to dst.
func EncodeBar(dst []byte, bar model.Bar) ([]byte, error) {
	body, err := sonic.Marshal(bar)
	if err != nil {
		return dst, errors.Wrap(err, "marshal bar")
	}
	dst = append(dst, BarPayloadVersion)
	return append(dst, body...), nil
}

// DecodeBar parses a payload produced by EncodeBar.
func DecodeBar(src []byte) (model.Bar, error) {
	if len(src) == 0 || src[0] != BarPayloadVersion {
		return model.Bar{}, exception.ErrBarPayloadVersion
	}
	var bar model.Bar
	if err := sonic.Unmarshal(src[1:], &bar); err != nil {
		return model.Bar{}, errors.Wrap(err, "unmarshal bar")
	}
	return bar, nil
}
