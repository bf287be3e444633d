// Package events consumes the dashboard's server-sent event stream and
// decodes it into typed events.
package events

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// Frame is one dispatched server-sent event.
type Frame struct {
	Type string
	Data []byte
}

// Decoder reads frames from a text/event-stream body.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next frame. Comment lines (keepalives) are skipped,
// multi-line data is joined with "\n", and a frame without an event field
// has type "message". It returns io.EOF when the stream ends; a trailing
// frame not terminated by a blank line is discarded.
func (d *Decoder) Next() (Frame, error) {
	var (
		typ     string
		data    bytes.Buffer
		hasData bool
	)
	for {
		line, err := d.r.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return Frame{}, io.EOF
			}
			return Frame{}, err
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if typ == "" && !hasData {
				continue
			}
			if typ == "" {
				typ = "message"
			}
			return Frame{Type: typ, Data: data.Bytes()}, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			typ = value
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		}
	}
}
