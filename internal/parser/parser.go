// Package parser extracts question entries from markdown files using
// line prefixes: "Q:" starts a question, "A:" its answer, "C:" optional
// context, and "---" separates entries. Blocks may span multiple lines.
package parser

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// Entry is one question parsed from a source file.
type Entry struct {
	Question string
	Answer   string
	Context  string
}

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	contextPrefix  = "C:"
	separator      = "---"
)

type section int

const (
	none section = iota
	inQuestion
	inAnswer
	inContext
)

// ParseFile reads the file at path and extracts all entries.
func ParseFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from r and extracts all entries. Lines outside any block
// are ignored; an entry without a question is dropped.
func Parse(r io.Reader) ([]Entry, error) {
	var (
		entries []Entry
		current Entry
		block   []string
		state   = none
	)

	flushBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.TrimRight(strings.Join(block, "\n"), "\n")
		switch state {
		case inQuestion:
			current.Question = content
		case inAnswer:
			current.Answer = content
		case inContext:
			current.Context = content
		}
		block = nil
	}

	finishEntry := func() {
		flushBlock()
		if current.Question != "" {
			entries = append(entries, current)
		}
		current = Entry{}
		state = none
	}

	startBlock := func(line, prefix string, s section) {
		flushBlock()
		if prefix == questionPrefix && state != none {
			// A new question always starts a new entry.
			finishEntry()
		}
		state = s
		block = append(block, strings.TrimPrefix(strings.TrimPrefix(line, prefix), " "))
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == separator:
			finishEntry()
		case strings.HasPrefix(line, questionPrefix):
			startBlock(line, questionPrefix, inQuestion)
		case strings.HasPrefix(line, answerPrefix):
			startBlock(line, answerPrefix, inAnswer)
		case strings.HasPrefix(line, contextPrefix):
			startBlock(line, contextPrefix, inContext)
		case state != none:
			block = append(block, line)
		}
	}
	finishEntry()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
