package rig

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// FLRig is loose about response types: numbers come back as strings,
// ints or doubles, and rig.get_bw may wrap its answer in a list.

func toInt(v interface{}) (int, error) {
	switch t := v.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, err
		}
		return int(f), nil
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case []interface{}:
		if len(t) == 0 {
			return 0, errors.New("empty list response")
		}
		return toInt(t[0])
	default:
		return 0, fmt.Errorf("unexpected response type %T", v)
	}
}

func toFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case float64:
		return t, nil
	case []interface{}:
		if len(t) == 0 {
			return 0, errors.New("empty list response")
		}
		return toFloat(t[0])
	default:
		return 0, fmt.Errorf("unexpected response type %T", v)
	}
}
