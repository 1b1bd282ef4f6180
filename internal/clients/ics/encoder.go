package ics

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/emersion/go-ical"
)

// maxLineOctets is the folding limit from RFC 5545 section 3.1, excluding CRLF
const maxLineOctets = 75

// Encode writes cal as iCalendar text with CRLF line endings and folded
// content lines. Property and parameter values are written as stored.
// Unlike ical.Encoder, component cardinality is not checked: a calendar
// without events and events without DTSTAMP are written as they are.
func Encode(w io.Writer, cal *ical.Calendar) error {
	if cal == nil || cal.Component == nil {
		return fmt.Errorf("encode calendar: nil calendar")
	}

	bw := bufio.NewWriter(w)
	if err := encodeComponent(bw, cal.Component); err != nil {
		return err
	}
	return bw.Flush()
}

func encodeComponent(w *bufio.Writer, comp *ical.Component) error {
	if err := writeLine(w, "BEGIN:"+comp.Name); err != nil {
		return err
	}

	names := make([]string, 0, len(comp.Props))
	for name := range comp.Props {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, prop := range comp.Props[name] {
			line, err := contentLine(&prop)
			if err != nil {
				return fmt.Errorf("encode %s: %w", comp.Name, err)
			}
			if err := writeLine(w, line); err != nil {
				return err
			}
		}
	}

	for _, child := range comp.Children {
		if err := encodeComponent(w, child); err != nil {
			return err
		}
	}

	return writeLine(w, "END:"+comp.Name)
}

func contentLine(prop *ical.Prop) (string, error) {
	var sb strings.Builder
	sb.WriteString(prop.Name)

	paramNames := make([]string, 0, len(prop.Params))
	for name := range prop.Params {
		paramNames = append(paramNames, name)
	}
	sort.Strings(paramNames)

	for _, name := range paramNames {
		sb.WriteString(";")
		sb.WriteString(name)
		sb.WriteString("=")
		for i, v := range prop.Params[name] {
			if i > 0 {
				sb.WriteString(",")
			}
			if strings.ContainsRune(v, '"') {
				return "", fmt.Errorf("param %s of %s contains a double-quote", name, prop.Name)
			}
			if strings.ContainsAny(v, ";:,") {
				sb.WriteString(`"` + v + `"`)
			} else {
				sb.WriteString(v)
			}
		}
	}

	if strings.ContainsAny(prop.Value, "\r\n") {
		return "", fmt.Errorf("value of %s contains a CR or LF", prop.Name)
	}
	sb.WriteString(":")
	sb.WriteString(prop.Value)

	return sb.String(), nil
}

// writeLine folds line into chunks of at most maxLineOctets octets. A fold
// never splits a UTF-8 sequence.
func writeLine(w *bufio.Writer, line string) error {
	limit := maxLineOctets
	for len(line) > limit {
		cut := limit
		for cut > 0 && isContinuationByte(line[cut]) {
			cut--
		}
		if cut == 0 {
			cut = limit
		}
		if _, err := w.WriteString(line[:cut] + "\r\n "); err != nil {
			return err
		}
		line = line[cut:]
		limit = maxLineOctets - 1
	}
	_, err := w.WriteString(line + "\r\n")
	return err
}

func isContinuationByte(b byte) bool {
	return b&0xC0 == 0x80
}
