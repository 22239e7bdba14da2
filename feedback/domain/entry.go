package domain

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Entry é uma submissão gravada no log. Date é só o dia (UTC): a hora não é
// gravada para não permitir correlacionar envio e identidade pelo horário.
type Entry struct {
	Date    string
	Payload string
}

// CoarseDate trunca t para o dia do calendário em UTC.
func CoarseDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func delimiter(date string) string { return "--- " + date + " ---" }

var delimiterRe = regexp.MustCompile(`^--- (\d{4}-\d{2}-\d{2}) ---$`)

// FormatEntry serializa a entrada: linha delimitadora, payload verbatim e uma
// linha em branco. Payload com alguma linha em forma de delimitador é recusado
// com ErrInvalidMessage, senão a leitura veria uma entrada a mais.
func FormatEntry(e Entry) (string, error) {
	if ContainsDelimiter(e.Payload) {
		return "", ErrInvalidMessage
	}

	var b strings.Builder
	b.Grow(len(e.Payload) + 32)
	b.WriteString(delimiter(e.Date))
	b.WriteByte('\n')
	b.WriteString(e.Payload)
	b.WriteString("\n\n")
	return b.String(), nil
}

func isDelimiter(line string) bool {
	return delimiterRe.MatchString(strings.TrimSuffix(line, "\r"))
}

// ContainsDelimiter diz se alguma linha de s seria lida como início de entrada.
func ContainsDelimiter(s string) bool {
	for _, line := range strings.Split(s, "\n") {
		if isDelimiter(line) {
			return true
		}
	}
	return false
}

// ParseLog lê todas as entradas na ordem em que foram gravadas.
//
// Só linhas delimitadoras separam entradas; o conteúdo entre elas é o payload
// mais o "\n\n" de fechamento, que é removido. Entrada sem o fechamento é
// ErrMalformedLog.
func ParseLog(r io.Reader) ([]Entry, error) {
	br := bufio.NewReader(r)

	var (
		entries []Entry
		cur     *Entry
		body    strings.Builder
		lineNo  int
	)
	flush := func() error {
		if cur == nil {
			return nil
		}
		raw := body.String()
		if !strings.HasSuffix(raw, "\n\n") {
			return fmt.Errorf("%w: entry %d is truncated", ErrMalformedLog, len(entries)+1)
		}
		cur.Payload = strings.TrimSuffix(raw, "\n\n")
		entries = append(entries, *cur)
		cur = nil
		body.Reset()
		return nil
	}

	for {
		line, err := br.ReadString('\n')
		if line != "" {
			lineNo++
			if m := delimiterRe.FindStringSubmatch(strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")); m != nil {
				if ferr := flush(); ferr != nil {
					return nil, ferr
				}
				cur = &Entry{Date: m[1]}
			} else if cur != nil {
				body.WriteString(line)
			} else if strings.TrimSpace(line) != "" {
				return nil, fmt.Errorf("%w: line %d outside of an entry", ErrMalformedLog, lineNo)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read feedback log: %w", err)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return entries, nil
}
