package fiscal

import (
	"context"
	"crypto/tls"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pdvlite/nfce-api/internal/domain/entity"
	"github.com/pdvlite/nfce-api/internal/infrastructure/sefaz"
	"github.com/pdvlite/nfce-api/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Env: "production", Level: "error"})
}

// ── Repositórios em memória ───────────────────────────────────────────────────

type memSales struct {
	mu    sync.Mutex
	sales map[string]*entity.Sale
}

func newMemSales(sales ...*entity.Sale) *memSales {
	m := &memSales{sales: make(map[string]*entity.Sale)}
	for _, s := range sales {
		m.sales[s.ID] = s
	}
	return m
}

func (m *memSales) GetByID(_ context.Context, id string) (*entity.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sales[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memSales) Update(_ context.Context, sale *entity.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sale
	m.sales[sale.ID] = &cp
	return nil
}

func (m *memSales) UpdateStatus(_ context.Context, id, status, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sales[id]; ok {
		s.Status = status
		s.ErrorMessage = errorMessage
	}
	return nil
}

func (m *memSales) get(id string) *entity.Sale {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.sales[id]
	return &cp
}

type memCompany struct {
	cfg *entity.CompanyConfig
}

func (m *memCompany) Get(context.Context) (*entity.CompanyConfig, error) {
	return m.cfg, nil
}

type memCerts struct {
	cert *entity.Certificate
}

func (m *memCerts) GetDefault(context.Context, string) (*entity.Certificate, error) {
	return m.cert, nil
}

func (m *memCerts) GetByID(context.Context, string) (*entity.Certificate, error) {
	return m.cert, nil
}

func (m *memCerts) UpdateMetadata(_ context.Context, cert *entity.Certificate) error {
	m.cert = cert
	return nil
}

type memCustomers struct {
	customers map[string]*entity.Customer
}

func (m *memCustomers) GetByID(_ context.Context, id string) (*entity.Customer, error) {
	return m.customers[id], nil
}

type memProducts struct {
	products map[string]*entity.Product
}

func (m *memProducts) GetByID(_ context.Context, id string) (*entity.Product, error) {
	return m.products[id], nil
}

type memInuts struct {
	mu    sync.Mutex
	inuts map[string]*entity.Inutilizacao
}

func newMemInuts() *memInuts {
	return &memInuts{inuts: make(map[string]*entity.Inutilizacao)}
}

func (m *memInuts) Create(_ context.Context, inut *entity.Inutilizacao) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *inut
	m.inuts[inut.ID] = &cp
	return nil
}

func (m *memInuts) Update(_ context.Context, inut *entity.Inutilizacao) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *inut
	m.inuts[inut.ID] = &cp
	return nil
}

func (m *memInuts) GetByID(_ context.Context, id string) (*entity.Inutilizacao, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.inuts[id]
	if !ok {
		return nil, nil
	}
	cp := *i
	return &cp, nil
}

func (m *memInuts) ListPendingRetries(_ context.Context, now time.Time, limit int) ([]*entity.Inutilizacao, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Inutilizacao
	for _, i := range m.inuts {
		if i.NeedsRetry(now) && len(out) < limit {
			cp := *i
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ── Cliente SEFAZ roteirizado ─────────────────────────────────────────────────

// fakeSefaz devolve resultados roteirizados por operação; a última entrada da
// fila se repete quando a fila esgota.
type fakeSefaz struct {
	mu sync.Mutex

	authorizeQueue []*sefaz.Result
	receiptQueue   []*sefaz.Result
	statusQueue    []*sefaz.Result
	cancelQueue    []*sefaz.Result
	inutQueue      []*sefaz.Result

	authorizeCalls int
	receiptCalls   int
	statusCalls    int
	cancelCalls    int
	inutCalls      int
}

func pop(queue *[]*sefaz.Result) *sefaz.Result {
	q := *queue
	if len(q) == 0 {
		return &sefaz.Result{Motivo: "fila de respostas vazia"}
	}
	head := q[0]
	if len(q) > 1 {
		*queue = q[1:]
	}
	return head
}

func (f *fakeSefaz) Authorize(context.Context, []byte) (*sefaz.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authorizeCalls++
	return pop(&f.authorizeQueue), nil
}

func (f *fakeSefaz) QueryReceipt(context.Context, string) (*sefaz.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receiptCalls++
	return pop(&f.receiptQueue), nil
}

func (f *fakeSefaz) QueryStatus(context.Context, string) (*sefaz.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	return pop(&f.statusQueue), nil
}

func (f *fakeSefaz) Cancel(context.Context, tls.Certificate, string, string, string) (*sefaz.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	return pop(&f.cancelQueue), nil
}

func (f *fakeSefaz) Inutilizar(context.Context, tls.Certificate, sefaz.InutilizacaoParams) (*sefaz.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inutCalls++
	return pop(&f.inutQueue), nil
}

func (f *fakeSefaz) calls() (authorize, receipt, cancel, inut int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authorizeCalls, f.receiptCalls, f.cancelCalls, f.inutCalls
}

// ── Stubs restantes ───────────────────────────────────────────────────────────

type passthroughSigner struct{}

func (passthroughSigner) Sign(xmlBytes []byte, _ tls.Certificate, _ string) ([]byte, error) {
	return xmlBytes, nil
}

func stubCertLoader(string, string) (tls.Certificate, error) {
	return tls.Certificate{}, nil
}

// ── Fixtures ──────────────────────────────────────────────────────────────────

// testChave é uma chave de acesso válida (DV 8) usada nas vendas já autorizadas.
const testChave = "35240712345678000195650010000000421123456788"

func testCompanyConfig() *entity.CompanyConfig {
	return &entity.CompanyConfig{
		ID:                "cfg-1",
		CNPJ:              "12345678000195",
		InscricaoEstadual: "123456789012",
		RazaoSocial:       "Mercado Central Ltda",
		Logradouro:        "Av Brasil",
		NumeroEndereco:    "1500",
		Bairro:            "Centro",
		CodigoMunicipio:   "3550308",
		Municipio:         "Sao Paulo",
		UF:                "SP",
		CEP:               "01001000",
		Ambiente:          "2",
		NFCeSerie:         1,
		CSCID:             "000001",
		CSCToken:          "ABCDEF1234567890",
	}
}

func testValidCertificate(now time.Time) *entity.Certificate {
	return &entity.Certificate{
		ID:              "cert-1",
		CompanyConfigID: "cfg-1",
		Path:            "/srv/certs/a1.pfx",
		Password:        "senha",
		NotBefore:       now.Add(-time.Hour),
		NotAfter:        now.Add(365 * 24 * time.Hour),
		IsValid:         true,
		IsDefault:       true,
	}
}

func testDraftSale() *entity.Sale {
	return &entity.Sale{
		ID:            "sale-1",
		Numero:        42,
		Serie:         1,
		Total:         decimal.RequireFromString("25.00"),
		PaymentMethod: "dinheiro",
		Status:        entity.SaleStatusDraft,
		Items: []*entity.SaleItem{
			{
				ID:        "item-1",
				SaleID:    "sale-1",
				ProductID: "prod-1",
				Quantity:  decimal.NewFromInt(5),
				UnitPrice: decimal.NewFromInt(5),
				Subtotal:  decimal.NewFromInt(25),
			},
		},
	}
}

func testProducts() *memProducts {
	return &memProducts{products: map[string]*entity.Product{
		"prod-1": {
			ID:      "prod-1",
			Codigo:  "P001",
			Nome:    "Arroz 5kg",
			NCM:     "10063021",
			Unidade: "UN",
			Preco:   decimal.NewFromInt(5),
		},
	}}
}
