package engine

import (
	"os"

	"github.com/valyala/fastjson"
	"golang.org/x/xerrors"
)

// LoadInitialCounts reads a JSON object mapping resource keys to their
// baseline values, e.g. {"U-7": 3}. Values must be integers.
func LoadInitialCounts(path string) (map[string]int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("read initial counts: %w", err)
	}
	return ParseInitialCounts(data)
}

func ParseInitialCounts(data []byte) (map[string]int64, error) {
	var p fastjson.Parser
	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, xerrors.Errorf("parse initial counts: %w", err)
	}
	obj, err := v.Object()
	if err != nil {
		return nil, xerrors.Errorf("initial counts must be an object: %w", err)
	}

	counts := make(map[string]int64, obj.Len())
	var visitErr error
	obj.Visit(func(key []byte, val *fastjson.Value) {
		if visitErr != nil {
			return
		}
		n, err := val.Int64()
		if err != nil {
			visitErr = xerrors.Errorf("initial count %q: %w", key, err)
			return
		}
		counts[string(key)] = n
	})
	if visitErr != nil {
		return nil, visitErr
	}
	return counts, nil
}
