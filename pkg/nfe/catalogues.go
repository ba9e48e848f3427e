// Package nfe contém catálogos e validações alinhados ao Manual de Orientação
// do Contribuinte (MOC) da NFC-e, modelo 65, leiaute 4.00.
package nfe

// =============================================================================
// Códigos de UF (IBGE) usados na chave de acesso e no campo cUF do grupo ide.
// =============================================================================

// UFCodes mapeia a sigla da UF para o código IBGE de dois dígitos.
var UFCodes = map[string]string{
	"RO": "11", "AC": "12", "AM": "13", "RR": "14", "PA": "15", "AP": "16",
	"TO": "17", "MA": "21", "PI": "22", "CE": "23", "RN": "24", "PB": "25",
	"PE": "26", "AL": "27", "SE": "28", "BA": "29", "MG": "31", "ES": "32",
	"RJ": "33", "SP": "35", "PR": "41", "SC": "42", "RS": "43", "MS": "50",
	"MT": "51", "GO": "52", "DF": "53",
}

// DefaultUFCode é o código usado quando a sigla não é reconhecida ("35" = SP).
// Fallback documentado: o sistema de referência opera em um único estado.
const DefaultUFCode = "35"

// UFCode resolve a sigla da UF para o código IBGE. Siglas desconhecidas caem
// no DefaultUFCode; não é erro silencioso, é o comportamento contratado.
func UFCode(sigla string) string {
	if code, ok := UFCodes[sigla]; ok {
		return code
	}
	return DefaultUFCode
}

// =============================================================================
// Ambiente (tpAmb): define endpoint, flag do XML e dígito da chave de acesso.
// =============================================================================

const (
	AmbienteProducao    = "1" // Produção
	AmbienteHomologacao = "2" // Homologação (testes)
)

// =============================================================================
// Formas de pagamento (tPag), tabela do grupo pag do leiaute 4.00.
// =============================================================================

const (
	PagamentoDinheiro      = "01" // Dinheiro
	PagamentoCheque        = "02" // Cheque
	PagamentoCartaoCredito = "03" // Cartão de Crédito
	PagamentoCartaoDebito  = "04" // Cartão de Débito
	PagamentoPix           = "17" // Pagamento Instantâneo (PIX)
	PagamentoOutros        = "99" // Outros
)

// PaymentMethodCodes mapeia o método de pagamento interno para o código SEFAZ.
var PaymentMethodCodes = map[string]string{
	"dinheiro":       PagamentoDinheiro,
	"cheque":         PagamentoCheque,
	"cartao_credito": PagamentoCartaoCredito,
	"cartao_debito":  PagamentoCartaoDebito,
	"pix":            PagamentoPix,
}

// PaymentCode resolve o método interno; desconhecidos viram "99" (Outros).
func PaymentCode(method string) string {
	if code, ok := PaymentMethodCodes[method]; ok {
		return code
	}
	return PagamentoOutros
}

// =============================================================================
// Regime tributário e tributação mínima (Simples Nacional).
// =============================================================================

const (
	// CSOSN102: Simples Nacional, tributada sem permissão de crédito.
	CSOSN102 = "102"
	// OrigemNacional: código de origem da mercadoria (0 = nacional).
	OrigemNacional = "0"
	// CRTSimplesNacional: Código de Regime Tributário do emitente.
	CRTSimplesNacional = "1"
)

// =============================================================================
// Constantes fixas do documento modelo 65.
// =============================================================================

const (
	ModeloNFCe          = "65"   // Modelo do documento fiscal
	VersaoLeiaute       = "4.00" // Versão do leiaute NF-e/NFC-e
	CodigoPaisBR        = "1058" // Código do país (BACEN)
	NomePaisBR          = "BRASIL"
	CFOPVendaConsumidor = "5102" // Venda de mercadoria adquirida de terceiros
)

// InfAdicSimples é o texto complementar obrigatório para emitentes do Simples.
const InfAdicSimples = "DOCUMENTO EMITIDO POR ME OU EPP OPTANTE PELO SIMPLES NACIONAL"
