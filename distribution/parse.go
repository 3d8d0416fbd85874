package distribution

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// toPerMille converts a two-digit percentile to the three-digit space, so
// that 99.9 can be written as 999.
func toPerMille(p int) int {
	if p > 100 {
		return p
	}
	return p * 10
}

// Parse reads comma separated percentile=value pairs, e.g.
// "50=10,90=20,999=100", and returns the validated Distribution.
func Parse(input string) (Distribution, error) {
	m := make(map[int]int64)
	for _, pair := range strings.Split(input, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, errors.Errorf("%q is not a percentile=value pair", pair)
		}
		percentile, err := strconv.Atoi(kv[0])
		if err != nil {
			return nil, errors.Wrapf(err, "parsing percentile in %q", pair)
		}
		value, err := strconv.ParseInt(kv[1], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing value in %q", pair)
		}
		m[toPerMille(percentile)] = value
	}
	return FromMap(m)
}
