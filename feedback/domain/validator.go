package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	BeginMarker = "-----BEGIN PGP MESSAGE-----"
	EndMarker   = "-----END PGP MESSAGE-----"

	PublicKeyMarker = "-----BEGIN PGP PUBLIC KEY BLOCK-----"
)

// Limits em caracteres (code points), não bytes.
type Limits struct {
	MinLength  int
	MaxLength  int
	MinContent int
}

var DefaultLimits = Limits{
	MinLength:  100,
	MaxLength:  1_000_000,
	MinContent: 50,
}

type Validator struct {
	Limits Limits
}

func NewValidator(l Limits) Validator {
	if l.MinLength <= 0 {
		l.MinLength = DefaultLimits.MinLength
	}
	if l.MaxLength <= 0 {
		l.MaxLength = DefaultLimits.MaxLength
	}
	if l.MinContent <= 0 {
		l.MinContent = DefaultLimits.MinContent
	}
	return Validator{Limits: l}
}

// Validate diz se o candidato tem forma de um único envelope PGP armored.
// Aceita any porque o valor vem de JSON decodificado; qualquer coisa que não
// seja string é rejeitada.
func (v Validator) Validate(candidate any) bool {
	s, ok := candidate.(string)
	if !ok {
		return false
	}

	n := utf8.RuneCountInString(s)
	if n < v.Limits.MinLength || n > v.Limits.MaxLength {
		return false
	}

	if strings.Count(s, BeginMarker) != 1 || strings.Count(s, EndMarker) != 1 {
		return false
	}
	begin := strings.Index(s, BeginMarker)
	end := strings.Index(s, EndMarker)
	if begin > end {
		return false
	}

	body := strings.TrimSpace(s[begin+len(BeginMarker) : end])
	return utf8.RuneCountInString(body) >= v.Limits.MinContent
}
