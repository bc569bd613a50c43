// Package idcodec maps internal numeric ids to the opaque tokens exposed to
// callers and back.
package idcodec

import (
	"strconv"
	"strings"

	"github.com/hackgods/medifit/internal/apperr"
)

const (
	DefaultPrefix = "EXTERNAL"
	separator     = "_"
)

var ErrMalformedID = apperr.Validation("malformed_id", "malformed identifier")

type Codec struct {
	prefix string
}

func New(prefix string) Codec {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Codec{prefix: prefix}
}

// Encode renders id as PREFIX_<id>.
func (c Codec) Encode(id int64) string {
	return c.prefixOrDefault() + separator + strconv.FormatInt(id, 10)
}

// Decode is the exact inverse of Encode. Only positive ids are accepted.
func (c Codec) Decode(token string) (int64, error) {
	rest, ok := strings.CutPrefix(token, c.prefixOrDefault()+separator)
	if !ok || rest == "" {
		return 0, ErrMalformedID
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, ErrMalformedID
		}
	}
	// strconv would accept a leading zero, which Encode never produces.
	if len(rest) > 1 && rest[0] == '0' {
		return 0, ErrMalformedID
	}

	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrMalformedID
	}
	return id, nil
}

// DecodeAll decodes every token, failing on the first malformed one.
func (c Codec) DecodeAll(tokens []string) ([]int64, error) {
	ids := make([]int64, 0, len(tokens))
	for _, t := range tokens {
		id, err := c.Decode(t)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c Codec) prefixOrDefault() string {
	if c.prefix == "" {
		return DefaultPrefix
	}
	return c.prefix
}
