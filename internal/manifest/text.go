package manifest

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// newDecoder returns a reader that decodes r as UTF-8, honouring a UTF-8 or
// UTF-16 byte order mark and replacing invalid sequences with U+FFFD
func newDecoder(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// ReadLines reads a text file as lines without terminators. Decoding
// errors never fail the read. A trailing newline does not start a new line.
func ReadLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return SplitLines(data)
}

// SplitLines decodes data and splits it into lines
func SplitLines(data []byte) ([]string, error) {
	decoded, err := io.ReadAll(newDecoder(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode: %w", err)
	}
	if len(decoded) == 0 {
		return nil, nil
	}

	text := strings.TrimSuffix(string(decoded), "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines, nil
}

// CountLines counts the lines of a text file with the same rules as
// ReadLines, streaming so large files are never held in memory
func CountLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	r := bufio.NewReaderSize(newDecoder(f), 64*1024)
	buf := make([]byte, 32*1024)
	count := 0
	var last byte
	seen := false
	for {
		n, err := r.Read(buf)
		if n > 0 {
			count += bytes.Count(buf[:n], []byte{'\n'})
			last = buf[n-1]
			seen = true
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read: %w", err)
		}
	}
	if seen && last != '\n' {
		count++
	}
	return count, nil
}
