package controller

import (
	"bufio"
	"iter"
	"os"

	"github.com/arloliu/go-gsender/logger"
)

// ProgramSource yields the lines of a program. Commands must be restartable:
// every call iterates the program from its first line.
type ProgramSource interface {
	Commands() iter.Seq[string]
}

// Lines is an in-memory program.
type Lines []string

var _ ProgramSource = Lines(nil)

func (l Lines) Commands() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, line := range l {
			if !yield(line) {
				return
			}
		}
	}
}

// ReaderProgram reads a program file, re-opening it on every iteration.
type ReaderProgram struct {
	Path string
}

var _ ProgramSource = ReaderProgram{}

func (p ReaderProgram) Commands() iter.Seq[string] {
	return func(yield func(string) bool) {
		f, err := os.Open(p.Path)
		if err != nil {
			logger.Error("failed to open program", "path", p.Path, "error", err)
			return
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 4096), 1<<20)
		for scanner.Scan() {
			if !yield(scanner.Text()) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			logger.Error("failed to read program", "path", p.Path, "error", err)
		}
	}
}
