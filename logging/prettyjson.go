// Package logging builds the slog loggers used by every command.
package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// PrettyJSONHandler is a slog.Handler that prints one indented JSON object per
// record. Fields keep the order they were logged in: time, level, msg, source,
// then handler attrs and record attrs. Groups become nested objects.
//
// It is meant for reading logs in a terminal, not for throughput.
type PrettyJSONHandler struct {
	w         io.Writer
	mu        *sync.Mutex
	level     slog.Leveler
	addSource bool

	// pre holds attrs added with WithAttrs, already placed under the groups
	// that were open at the time.
	pre    []field
	groups []string
}

type field struct {
	key   string
	value any
}

func NewPrettyJSONHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyJSONHandler {
	h := &PrettyJSONHandler{w: w, mu: &sync.Mutex{}, level: slog.LevelInfo}
	if opts != nil {
		if opts.Level != nil {
			h.level = opts.Level
		}
		h.addSource = opts.AddSource
	}
	return h
}

func (h *PrettyJSONHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *PrettyJSONHandler) Handle(_ context.Context, r slog.Record) error {
	when := r.Time
	if when.IsZero() {
		when = time.Now()
	}
	fields := []field{
		{"time", when.Format(time.RFC3339Nano)},
		{"level", r.Level.String()},
		{"msg", r.Message},
	}
	if h.addSource {
		if src := sourceFromPC(r.PC); src != "" {
			fields = append(fields, field{"source", src})
		}
	}
	fields = append(fields, h.pre...)

	var rec []field
	r.Attrs(func(a slog.Attr) bool {
		rec = appendAttr(rec, a)
		return true
	})
	fields = append(fields, nest(h.groups, rec)...)

	var buf bytes.Buffer
	writeObject(&buf, fields, "")
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *PrettyJSONHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var add []field
	for _, a := range attrs {
		add = appendAttr(add, a)
	}
	clone := *h
	clone.pre = append(append([]field(nil), h.pre...), nest(h.groups, add)...)
	return &clone
}

func (h *PrettyJSONHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

// nest wraps fields in one object per open group, innermost last.
func nest(groups []string, fields []field) []field {
	if len(fields) == 0 {
		return nil
	}
	for i := len(groups) - 1; i >= 0; i-- {
		fields = []field{{groups[i], fields}}
	}
	return fields
}

func appendAttr(dst []field, a slog.Attr) []field {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		var children []field
		for _, ga := range v.Group() {
			children = appendAttr(children, ga)
		}
		if len(children) == 0 {
			return dst
		}
		// Inline groups with an empty key, as slog does.
		if a.Key == "" {
			return append(dst, children...)
		}
		return append(dst, field{a.Key, children})
	}
	if a.Key == "" {
		return dst
	}
	return append(dst, field{a.Key, valueToAny(v)})
}

func valueToAny(v slog.Value) any {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return v.Uint64()
	case slog.KindFloat64:
		return v.Float64()
	case slog.KindBool:
		return v.Bool()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.Any()
	default:
		return v.String()
	}
}

func writeObject(buf *bytes.Buffer, fields []field, indent string) {
	inner := indent + "  "
	buf.WriteString("{\n")
	for i, f := range fields {
		buf.WriteString(inner)
		buf.WriteString(strconv.Quote(f.key))
		buf.WriteString(": ")
		if children, ok := f.value.([]field); ok {
			writeObject(buf, children, inner)
		} else {
			writeValue(buf, f.value, inner)
		}
		if i < len(fields)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString(indent)
	buf.WriteByte('}')
}

func writeValue(buf *bytes.Buffer, v any, indent string) {
	b, err := json.MarshalIndent(v, indent, "  ")
	if err != nil {
		// Unmarshalable values are logged as their string form.
		b, _ = json.Marshal(err.Error())
	}
	buf.Write(b)
}

func sourceFromPC(pc uintptr) string {
	if pc == 0 {
		return ""
	}
	frames := runtime.CallersFrames([]uintptr{pc})
	f, _ := frames.Next()
	if f.File == "" {
		return ""
	}
	file := f.File
	if idx := strings.LastIndexByte(file, '/'); idx >= 0 {
		file = file[idx+1:]
	}
	return file + ":" + strconv.Itoa(f.Line)
}
