package handlers

// call names match the method names a transport adapter exposes over the
// wire (spec §4.8); Dispatch exists so cmd/watchtreed's socket listener can
// stay a thin decode-dispatch-encode loop instead of a type switch of its
// own.
const (
	CallPing         = "ping"
	CallStatus       = "status"
	CallWatch        = "watch"
	CallUnwatch      = "unwatch"
	CallPause        = "pause"
	CallUnpause      = "unpause"
	CallGetQueueSize = "get_queue_size"
	CallGetEvents    = "get_events"
	CallGetRoots     = "get_roots"
)

// Dispatch routes a decoded call name and parameter bag to the matching
// Handlers method. params values are whatever a JSON decoder into
// map[string]any would have produced (float64 for numbers, string, bool).
// Unknown calls and missing/mistyped keys are reported as typed errors
// rather than panics, matching spec §7's JsonKeyMissing and BadCall codes.
func (h *Handlers) Dispatch(call string, params map[string]any) (any, *Error) {
	switch call {
	case CallPing:
		return h.Ping(), nil
	case CallStatus:
		return h.Status(), nil
	case CallWatch:
		path, err := stringParam(params, "path")
		if err != nil {
			return nil, err
		}
		mask, err := uintParam(params, "mask")
		if err != nil {
			return nil, err
		}
		maxEvents, err := intParam(params, "max_events")
		if err != nil {
			return nil, err
		}
		rewatch, err := boolParam(params, "rewatch")
		if err != nil {
			return nil, err
		}
		if werr := h.Watch(path, mask, maxEvents, rewatch); werr != nil {
			return nil, werr
		}
		return nil, nil
	case CallUnwatch:
		path, err := stringParam(params, "path")
		if err != nil {
			return nil, err
		}
		return nil, h.Unwatch(path)
	case CallPause:
		path, err := stringParam(params, "path")
		if err != nil {
			return nil, err
		}
		return nil, h.Pause(path)
	case CallUnpause:
		path, err := stringParam(params, "path")
		if err != nil {
			return nil, err
		}
		return nil, h.Unpause(path)
	case CallGetQueueSize:
		path, err := stringParam(params, "path")
		if err != nil {
			return nil, err
		}
		n, gerr := h.GetQueueSize(path)
		if gerr != nil {
			return nil, gerr
		}
		return n, nil
	case CallGetEvents:
		path, err := stringParam(params, "path")
		if err != nil {
			return nil, err
		}
		count, err := intParam(params, "count")
		if err != nil {
			return nil, err
		}
		events, gerr := h.GetEvents(path, count)
		if gerr != nil {
			return nil, gerr
		}
		return events, nil
	case CallGetRoots:
		return h.GetRoots(), nil
	default:
		return nil, newError(CodeBadCall, "unknown call %q", call)
	}
}

func stringParam(params map[string]any, key string) (string, *Error) {
	v, ok := params[key]
	if !ok {
		return "", newError(CodeJsonKeyMissing, "missing required key %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", newError(CodeJsonParse, "key %q: expected string, got %T", key, v)
	}
	return s, nil
}

func intParam(params map[string]any, key string) (int, *Error) {
	v, ok := params[key]
	if !ok {
		return 0, nil
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, newError(CodeJsonParse, "key %q: expected number, got %T", key, v)
	}
}

func uintParam(params map[string]any, key string) (uint32, *Error) {
	n, err := intParam(params, key)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, newError(CodeJsonParse, "key %q: must be >= 0", key)
	}
	return uint32(n), nil
}

func boolParam(params map[string]any, key string) (bool, *Error) {
	v, ok := params[key]
	if !ok {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, newError(CodeJsonParse, "key %q: expected bool, got %T", key, v)
	}
	return b, nil
}
