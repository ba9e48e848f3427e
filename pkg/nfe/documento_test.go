package nfe_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdvlite/nfce-api/pkg/nfe"
)

// ──────────────────────────────────────────────────────────────────────────────
// Vetores de CPF/CNPJ com dígitos verificadores calculados manualmente pelo
// módulo 11 da Receita. Se alguém mexer nos ciclos de peso, estes testes param
// o build antes do primeiro dest rejeitado em produção.
// ──────────────────────────────────────────────────────────────────────────────

func TestValidateCPF(t *testing.T) {
	assert.NoError(t, nfe.ValidateCPF("52998224725"))
	assert.NoError(t, nfe.ValidateCPF("529.982.247-25"), "pontuação é descartada")

	assert.Error(t, nfe.ValidateCPF("52998224724"), "segundo DV errado")
	assert.Error(t, nfe.ValidateCPF("11111111111"), "dígitos repetidos")
	assert.Error(t, nfe.ValidateCPF("5299822472"), "curto demais")
}

func TestValidateCNPJ(t *testing.T) {
	assert.NoError(t, nfe.ValidateCNPJ("11444777000161"))
	assert.NoError(t, nfe.ValidateCNPJ("11.444.777/0001-61"))
	assert.NoError(t, nfe.ValidateCNPJ("12345678000195"))

	assert.Error(t, nfe.ValidateCNPJ("11444777000162"), "segundo DV errado")
	assert.Error(t, nfe.ValidateCNPJ("00000000000000"), "dígitos repetidos")
	assert.Error(t, nfe.ValidateCNPJ("114447770001"), "curto demais")
}

func TestIsCPFIsCNPJ(t *testing.T) {
	assert.True(t, nfe.IsCPF("529.982.247-25"))
	assert.False(t, nfe.IsCPF("11444777000161"))
	assert.True(t, nfe.IsCNPJ("11.444.777/0001-61"))
	assert.False(t, nfe.IsCNPJ("52998224725"))
}

func TestOnlyDigits(t *testing.T) {
	assert.Equal(t, "11444777000161", nfe.OnlyDigits("11.444.777/0001-61"))
	assert.Equal(t, "", nfe.OnlyDigits("abc"))
}

func TestRemoveAcentos(t *testing.T) {
	assert.Equal(t, "Padaria Sao Joao", nfe.RemoveAcentos("  Padaria São João "))
	assert.Equal(t, "ACUCAR CRISTAL", nfe.RemoveAcentos("AÇÚCAR CRISTAL"))
	assert.Equal(t, "sem acento", nfe.RemoveAcentos("sem acento"))
}

func TestTruncarTexto(t *testing.T) {
	assert.Equal(t, "abcde", nfe.TruncarTexto("abcdefgh", 5))
	assert.Equal(t, "abc", nfe.TruncarTexto("abc", 5))
	assert.Equal(t, "ação", nfe.TruncarTexto("açãozinha", 4), "corte por runa, não por byte")
}
