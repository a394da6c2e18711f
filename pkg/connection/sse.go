package connection

import (
	"bufio"
	"io"
	"strings"
)

// parseStream reads server-sent-event frames and emits one callback per
// complete frame. Comment lines (leading ':', used by the server as
// heartbeats) and unknown fields are ignored. Multiple data lines in one
// frame are joined with newlines per the SSE grammar.
//
// It returns when the reader fails or ends; a clean EOF is still a
// structural channel failure for our purposes since the stream is meant to
// live forever.
func parseStream(r io.Reader, emit func(name string, data []byte)) error {
	br := bufio.NewReader(r)

	var name string
	var data []byte

	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if err == io.EOF && line == "" {
				return io.ErrUnexpectedEOF
			}
			return err
		}

		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if len(data) > 0 {
				if name == "" {
					name = "message"
				}
				emit(name, data)
			}
			name = ""
			data = nil

		case strings.HasPrefix(line, ":"):
			// heartbeat / comment

		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))

		case strings.HasPrefix(line, "data:"):
			chunk := strings.TrimPrefix(line, "data:")
			chunk = strings.TrimPrefix(chunk, " ")
			if data != nil {
				data = append(data, '\n')
			}
			data = append(data, chunk...)
		}
	}
}
