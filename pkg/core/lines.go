package core

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// ReadLines reads r until EOF and calls fn for each line with its terminator
// removed. A final line without a terminator is delivered too. It returns nil
// at EOF and the read error otherwise.
func ReadLines(r io.Reader, fn func(string)) error {
	reader := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			fn(TrimEOL(line))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// TrimEOL strips one trailing "\n" or "\r\n".
func TrimEOL(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}
