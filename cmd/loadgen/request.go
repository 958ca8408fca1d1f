package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dreamware/keypart/internal/wire"
)

// request is one line of a loadgen request file, already resolved into a
// wire.ClientMessage shape. parseRequests assigns the ID; RecordTimestamp
// is left false.
type request struct {
	msg  wire.ClientMessage
	line int
}

// parseRequests reads the line-oriented request format: "R <key>",
// "W <key> <value>", "S <key> <n>". Blank lines and lines starting with #
// are ignored. Each request is assigned a sequential ID.
func parseRequests(r io.Reader) ([]request, error) {
	scanner := bufio.NewScanner(r)
	var out []request
	var nextID int32
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: expected at least '<op> <key>', got %q", line, text)
		}
		key, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid key %q: %w", line, fields[1], err)
		}

		m := wire.ClientMessage{ID: nextID, Key: key}
		switch strings.ToUpper(fields[0]) {
		case "R":
			m.Kind = wire.Read
		case "W":
			if len(fields) < 3 {
				return nil, fmt.Errorf("line %d: W requires a value", line)
			}
			m.Kind = wire.Write
			m.Args = []byte(strings.Join(fields[2:], " "))
		case "S":
			if len(fields) < 3 {
				return nil, fmt.Errorf("line %d: S requires a count", line)
			}
			m.Kind = wire.Scan
			m.Args = []byte(fields[2])
		default:
			return nil, fmt.Errorf("line %d: unknown op %q", line, fields[0])
		}
		nextID++
		out = append(out, request{msg: m, line: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
