package store

import (
	"encoding/json"
	"strconv"
)

// Document is a single retrieved chunk flowing through the pipeline.
// Score is the only field rerankers are allowed to overwrite; everything
// else is read-only once retrieval has produced the document.
type Document struct {
	ID         string
	Collection string
	Title      string
	Text       string
	Score      float64
	Metadata   map[string]any
	Timestamp  int64 // epoch seconds, 0 = unknown
}

// CollectionScore is a routing decision: search this collection with
// this confidence. Confidence is always in [0,1].
type CollectionScore struct {
	Collection string
	Confidence float64
}

// NormalizeTimestamp coerces the loosely-typed timestamp values found in
// vector payloads (string, float, int, json.Number, nil) into epoch
// seconds. Anything unparsable collapses to 0, the "unknown" sentinel.
func NormalizeTimestamp(raw any) int64 {
	switch v := raw.(type) {
	case nil:
		return 0
	case int64:
		return clampTimestamp(v)
	case int:
		return clampTimestamp(int64(v))
	case float64:
		return clampTimestamp(int64(v))
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil {
				return 0
			}
			return clampTimestamp(int64(f))
		}
		return clampTimestamp(n)
	case string:
		if v == "" {
			return 0
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(v, 64)
			if ferr != nil {
				return 0
			}
			return clampTimestamp(int64(f))
		}
		return clampTimestamp(n)
	default:
		return 0
	}
}

func clampTimestamp(ts int64) int64 {
	if ts < 0 {
		return 0
	}
	return ts
}
