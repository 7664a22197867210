// Package manifest reads markdown files that list question/answer image
// pairs:
//
//	Q: images/q1.jpg
//	A: images/a1.jpg
//	---
//
// A block ends at "---" or at the next "Q:" line. Other lines are ignored.
package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	separator      = "---"
)

// ErrIncompleteEntry is wrapped by errors for blocks missing a question or
// an answer.
var ErrIncompleteEntry = errors.New("manifest: incomplete entry")

// Entry is one question/answer pair from a manifest.
type Entry struct {
	Question string
	Answer   string
	Line     int // line of the entry's first field
}

// ParseFile reads a manifest from the given path.
func ParseFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse extracts every complete entry from r. Incomplete blocks are
// reported together in the returned error; the complete entries are still
// returned.
func Parse(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	var entries []Entry
	var problems []error
	var current Entry
	lineNo := 0

	finish := func() {
		switch {
		case current.Question == "" && current.Answer == "":
		case current.Question == "":
			problems = append(problems, fmt.Errorf("%w: line %d: answer without question", ErrIncompleteEntry, current.Line))
		case current.Answer == "":
			problems = append(problems, fmt.Errorf("%w: line %d: question without answer", ErrIncompleteEntry, current.Line))
		default:
			entries = append(entries, current)
		}
		current = Entry{}
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == separator:
			finish()
		case strings.HasPrefix(line, questionPrefix):
			if current.Question != "" || current.Answer != "" {
				finish()
			}
			current.Question = field(line, questionPrefix)
			current.Line = lineNo
		case strings.HasPrefix(line, answerPrefix):
			if current.Answer != "" {
				finish()
			}
			current.Answer = field(line, answerPrefix)
			if current.Line == 0 {
				current.Line = lineNo
			}
		}
	}
	finish()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, errors.Join(problems...)
}

func field(line, prefix string) string {
	return strings.TrimSpace(line[len(prefix):])
}
