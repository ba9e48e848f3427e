package entity

import "time"

// Estados da inutilização de faixa de numeração.
const (
	InutStatusPending    = "pending"
	InutStatusAuthorized = "authorized"
	InutStatusRejected   = "rejected"
	InutStatusError      = "error"
)

// MaxInutRetries limita a seleção de candidatas pela varredura de retentativa.
const MaxInutRetries = 5

// Inutilizacao representa o evento de inutilização de uma faixa contígua de
// números não usados. Diferente da transmissão de venda, a retentativa aqui é
// dirigida por dados: RetryCount e NextRetryAt moram na própria linha e são
// consultados por uma varredura periódica.
type Inutilizacao struct {
	ID            string
	Serie         int
	NumeroInicial int64
	NumeroFinal   int64
	Justificativa string // Mínimo de 15 caracteres, garantido a montante
	Status        string
	Protocolo     string // nProt devolvido pela SEFAZ quando homologada
	CStat         string // Código SEFAZ do último resultado
	Motivo        string // xMotivo literal
	RetryCount    int
	NextRetryAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NeedsRetry é o predicado da varredura: pendente, abaixo do teto de
// tentativas e com a próxima janela vencida (ou nunca agendada).
func (i *Inutilizacao) NeedsRetry(now time.Time) bool {
	if i.Status != InutStatusPending || i.RetryCount >= MaxInutRetries {
		return false
	}
	return i.NextRetryAt == nil || !now.Before(*i.NextRetryAt)
}

// ScheduleRetry registra uma falha e agenda a próxima tentativa para
// now + 2^RetryCount minutos (exponencial verdadeiro, sem teto no intervalo;
// o teto fica no RetryCount < 5 da seleção).
func (i *Inutilizacao) ScheduleRetry(now time.Time) {
	i.RetryCount++
	next := now.Add(time.Duration(1<<uint(i.RetryCount)) * time.Minute)
	i.NextRetryAt = &next
}
