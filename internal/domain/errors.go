package domain

import "errors"

// Erros de domínio (sem dependências externas).
var (
	ErrNotFound                  = errors.New("recurso não encontrado")
	ErrInvalidInput              = errors.New("entrada inválida")
	ErrConflict                  = errors.New("conflito com o estado atual")
	ErrEmitenteIncompleto        = errors.New("dados do emitente incompletos")
	ErrCertificadoNaoConfigurado = errors.New("certificado digital não configurado")
	ErrCertificadoNaoEncontrado  = errors.New("arquivo do certificado não encontrado")
	ErrCertificadoInvalido       = errors.New("certificado ilegível ou senha incorreta")
	ErrVendaSemItens             = errors.New("venda sem itens")
	ErrTransicaoInvalida         = errors.New("transição de status não permitida")
)
