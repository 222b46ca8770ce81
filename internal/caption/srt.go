package caption

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Static errors describing why a caption document is malformed.
var (
	// ErrMissingNumber is returned when a block does not start with its sequence number.
	ErrMissingNumber = errors.New("expected caption sequence number")
	// ErrMissingTiming is returned when the sequence number is not followed by a timing line.
	ErrMissingTiming = errors.New("expected 'start --> end' timing line")
	// ErrBadTimestamp is returned when a timestamp cannot be parsed.
	ErrBadTimestamp = errors.New("invalid timestamp")
	// ErrMissingText is returned when a block has no text lines.
	ErrMissingText = errors.New("caption has no text")
	// ErrEndBeforeStart is returned when a caption ends before it starts.
	ErrEndBeforeStart = errors.New("caption ends before it starts")
)

const timingSeparator = "-->"

// HH:MM:SS,mmm with "." accepted in place of "," and an optional fraction.
var timestampRe = regexp.MustCompile(`^(\d+):(\d{1,2}):(\d{1,2})(?:[,.](\d{1,3}))?$`)

// SyntaxError locates a malformed block in a caption document.
type SyntaxError struct {
	// Block is the zero-based position of the caption being parsed.
	Block int
	// Line is the one-based line number in the document.
	Line int
	Err  error
}

func (e *SyntaxError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("item %d: %v", e.Block, e.Err)
	}
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// ParseSRT parses a SubRip document: numbered blocks of a sequence number,
// a "start --> end" timing line and one or more text lines, separated by
// blank lines.
func ParseSRT(r io.Reader) ([]Caption, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}

	var captions []Caption
	i := skipBlank(lines, 0)
	for i < len(lines) {
		block := len(captions)

		if _, err := strconv.Atoi(strings.TrimSpace(lines[i])); err != nil {
			return nil, &SyntaxError{Block: block, Line: i + 1, Err: fmt.Errorf("%w, got %q", ErrMissingNumber, lines[i])}
		}
		i++

		if i >= len(lines) || !strings.Contains(lines[i], timingSeparator) {
			return nil, &SyntaxError{Block: block, Line: i + 1, Err: ErrMissingTiming}
		}
		start, end, err := parseTiming(lines[i])
		if err != nil {
			return nil, &SyntaxError{Block: block, Line: i + 1, Err: err}
		}
		if end < start {
			return nil, &SyntaxError{Block: block, Line: i + 1, Err: ErrEndBeforeStart}
		}
		i++

		textStart := i
		for i < len(lines) && !isBlank(lines[i]) {
			i++
		}
		if i == textStart {
			return nil, &SyntaxError{Block: block, Line: i + 1, Err: ErrMissingText}
		}

		captions = append(captions, Caption{
			Index:   block,
			Start:   start,
			End:     end,
			Content: strings.Join(lines[textStart:i], "\n"),
		})
		i = skipBlank(lines, i)
	}

	return captions, nil
}

func readLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if len(lines) == 0 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read captions: %w", err)
	}
	return lines, nil
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

func skipBlank(lines []string, i int) int {
	for i < len(lines) && isBlank(lines[i]) {
		i++
	}
	return i
}

// parseTiming parses "start --> end". Anything after the end timestamp
// (SubRip position hints such as "X1:40 X2:600") is ignored.
func parseTiming(line string) (time.Duration, time.Duration, error) {
	parts := strings.Split(line, timingSeparator)
	if len(parts) != 2 {
		return 0, 0, ErrMissingTiming
	}
	endFields := strings.Fields(parts[1])
	if len(endFields) == 0 {
		return 0, 0, fmt.Errorf("%w: missing end", ErrBadTimestamp)
	}
	start, err := parseTimestamp(parts[0])
	if err != nil {
		return 0, 0, err
	}
	end, err := parseTimestamp(endFields[0])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// parseTimestamp converts HH:MM:SS,mmm to a duration. The fractional field
// is read as a millisecond count.
func parseTimestamp(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	m := timestampRe.FindStringSubmatch(value)
	if m == nil {
		return 0, fmt.Errorf("%w %q", ErrBadTimestamp, value)
	}

	hours, errH := strconv.Atoi(m[1])
	minutes, errM := strconv.Atoi(m[2])
	seconds, errS := strconv.Atoi(m[3])
	if errH != nil || errM != nil || errS != nil {
		return 0, fmt.Errorf("%w %q", ErrBadTimestamp, value)
	}
	millis := 0
	if m[4] != "" {
		millis, _ = strconv.Atoi(m[4])
	}

	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond, nil
}
