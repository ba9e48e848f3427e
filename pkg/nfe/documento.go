package nfe

import (
	"fmt"
	"unicode"
)

// Validação de CPF e CNPJ pelo algoritmo módulo 11 da Receita Federal.
// Os ciclos de pesos daqui (reiniciados a cada dígito verificador) NÃO são os
// mesmos da chave de acesso da NFC-e; não reaproveitar entre os dois cálculos.

// IsCPF informa se o documento tem o tamanho de um CPF (11 dígitos).
// A ramificação CPF/CNPJ do grupo dest do XML usa apenas o tamanho.
func IsCPF(doc string) bool {
	return len(OnlyDigits(doc)) == 11
}

// IsCNPJ informa se o documento tem o tamanho de um CNPJ (14 dígitos).
func IsCNPJ(doc string) bool {
	return len(OnlyDigits(doc)) == 14
}

// ValidateCPF valida os dois dígitos verificadores de um CPF.
// Aceita o documento com ou sem pontuação.
func ValidateCPF(doc string) error {
	digits := OnlyDigits(doc)
	if len(digits) != 11 {
		return fmt.Errorf("nfe: CPF deve ter 11 dígitos, recebidos %d", len(digits))
	}
	if allSame(digits) {
		return fmt.Errorf("nfe: CPF com todos os dígitos iguais é inválido")
	}
	// 1º DV: pesos 10..2 sobre os 9 primeiros dígitos
	if dv := mod11CPF(digits[:9], 10); dv != int(digits[9]-'0') {
		return fmt.Errorf("nfe: primeiro dígito verificador do CPF inválido")
	}
	// 2º DV: pesos 11..2 sobre os 10 primeiros dígitos
	if dv := mod11CPF(digits[:10], 11); dv != int(digits[10]-'0') {
		return fmt.Errorf("nfe: segundo dígito verificador do CPF inválido")
	}
	return nil
}

// ValidateCNPJ valida os dois dígitos verificadores de um CNPJ.
func ValidateCNPJ(doc string) error {
	digits := OnlyDigits(doc)
	if len(digits) != 14 {
		return fmt.Errorf("nfe: CNPJ deve ter 14 dígitos, recebidos %d", len(digits))
	}
	if allSame(digits) {
		return fmt.Errorf("nfe: CNPJ com todos os dígitos iguais é inválido")
	}
	if dv := mod11CNPJ(digits[:12]); dv != int(digits[12]-'0') {
		return fmt.Errorf("nfe: primeiro dígito verificador do CNPJ inválido")
	}
	if dv := mod11CNPJ(digits[:13]); dv != int(digits[13]-'0') {
		return fmt.Errorf("nfe: segundo dígito verificador do CNPJ inválido")
	}
	return nil
}

// mod11CPF aplica pesos decrescentes a partir de firstWeight (10 ou 11).
func mod11CPF(digits string, firstWeight int) int {
	var sum int
	for i, d := range digits {
		sum += int(d-'0') * (firstWeight - i)
	}
	rest := sum % 11
	if rest < 2 {
		return 0
	}
	return 11 - rest
}

// mod11CNPJ aplica os pesos 5,4,3,2,9,8,7,6,5,4,3,2 (ou 6,... para o 2º DV),
// da esquerda para a direita.
func mod11CNPJ(digits string) int {
	weight := len(digits) - 7 // 5 para 12 dígitos, 6 para 13
	var sum int
	for _, d := range digits {
		sum += int(d-'0') * weight
		weight--
		if weight < 2 {
			weight = 9
		}
	}
	rest := sum % 11
	if rest < 2 {
		return 0
	}
	return 11 - rest
}

func allSame(digits string) bool {
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			return false
		}
	}
	return true
}

// OnlyDigits remove tudo que não for dígito 0-9 (CNPJ com pontuação, etc.).
func OnlyDigits(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsDigit(r) {
			out = append(out, r)
		}
	}
	return string(out)
}
