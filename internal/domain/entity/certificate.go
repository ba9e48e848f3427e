package entity

import "time"

// Certificate referencia um bundle PKCS#12 (A1) do emitente, com metadados
// extraídos para exibição. No máximo um registro com IsDefault=true por
// CompanyConfig, invariante mantida por quem grava a flag, não por este core.
type Certificate struct {
	ID              string
	CompanyConfigID string
	Path            string // Caminho do arquivo .pfx/.p12 em disco
	Password        string // Senha do bundle (armazenada cifrada pela camada externa)
	Subject         string
	Issuer          string
	NotBefore       time.Time
	NotAfter        time.Time
	IsValid         bool
	IsDefault       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Expired informa se o certificado está fora da validade no instante dado.
func (c *Certificate) Expired(now time.Time) bool {
	return now.Before(c.NotBefore) || now.After(c.NotAfter)
}
