package loader

import (
	"bufio"
	"bytes"
	"strings"

	"go.uber.org/zap"

	"github.com/yassinexng/datawise/internal/table"
)

type delimitedDecoder struct{}

func (delimitedDecoder) CanDecode(filename string) bool {
	return hasExt(filename, ".csv", ".tsv", ".txt")
}

func (delimitedDecoder) Decode(data []byte, opt Options) (*table.Table, error) {
	delim := opt.Delimiter
	if delim == 0 {
		delim = SniffDelimiter(data)
		opt.logger().Debug("sniffed delimiter", zap.String("delimiter", string(delim)))
	}
	return table.ReadCSV(bytes.NewReader(data), table.ReadOptions{Delimiter: delim, MissingTokens: opt.MissingTokens})
}

var candidates = []rune{',', ';', '\t', '|'}

// sniffLines is how many leading lines SniffDelimiter inspects.
const sniffLines = 20

// SniffDelimiter picks the candidate that splits the leading lines into the
// same, largest number of fields. Quoted sections are ignored. Comma wins
// ties and is the fallback.
func SniffDelimiter(data []byte) rune {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() && len(lines) < sniffLines {
		if strings.TrimSpace(sc.Text()) != "" {
			lines = append(lines, sc.Text())
		}
	}
	if len(lines) == 0 {
		return ','
	}
	best, bestCount := ',', 0
	for _, d := range candidates {
		n := countOutsideQuotes(lines[0], d)
		if n == 0 {
			continue
		}
		consistent := true
		for _, l := range lines[1:] {
			if countOutsideQuotes(l, d) != n {
				consistent = false
				break
			}
		}
		if consistent && n > bestCount {
			best, bestCount = d, n
		}
	}
	if bestCount == 0 {
		for _, d := range candidates {
			if n := countOutsideQuotes(lines[0], d); n > bestCount {
				best, bestCount = d, n
			}
		}
	}
	return best
}

func countOutsideQuotes(line string, d rune) int {
	n, quoted := 0, false
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
		case r == d && !quoted:
			n++
		}
	}
	return n
}
