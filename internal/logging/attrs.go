package logging

import "log/slog"

func ExecutionKey(key string) slog.Attr {
	return slog.String("execution", key)
}

func FlowID(id string) slog.Attr {
	return slog.String("flow_id", id)
}

func StateID(id string) slog.Attr {
	return slog.String("state_id", id)
}

func EventID(id string) slog.Attr {
	return slog.String("event_id", id)
}

func Status[T ~string](status T) slog.Attr {
	return slog.String("status", string(status))
}

func Depth(n int) slog.Attr {
	return slog.Int("depth", n)
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}
