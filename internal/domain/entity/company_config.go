package entity

import "time"

// CompanyConfig guarda a identidade fiscal do emitente. Um registro por
// tenant; o sistema de referência assume singleton.
type CompanyConfig struct {
	ID                string
	CNPJ              string // 14 dígitos
	InscricaoEstadual string // IE
	RazaoSocial       string
	NomeFantasia      string
	Logradouro        string
	NumeroEndereco    string
	Bairro            string
	CodigoMunicipio   string // Código IBGE do município (7 dígitos)
	Municipio         string
	UF                string // Sigla ("SP")
	CEP               string
	Ambiente          string // "1" produção, "2" homologação (ver pkg/nfe)
	NFCeSerie         int    // Série corrente
	NFCeProximoNumero int64  // Contador monotônico; incrementado fora deste core
	CSCID             string // Identificador do CSC (ex: "000001")
	CSCToken          string // Segredo usado apenas no hash do QR code
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
