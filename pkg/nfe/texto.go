package nfe

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var semAcentos = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// RemoveAcentos converte o texto para a forma aceita pelos web services da
// SEFAZ: sem diacríticos e sem espaços nas bordas.
func RemoveAcentos(s string) string {
	out, _, err := transform.String(semAcentos, s)
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(out)
}

// TruncarTexto corta o texto no limite de caracteres do campo.
func TruncarTexto(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
