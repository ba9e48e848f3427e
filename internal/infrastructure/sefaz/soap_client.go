package sefaz

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pdvlite/nfce-api/pkg/nfe"
)

// ── Constantes do protocolo ───────────────────────────────────────────────────

const (
	soapNS12 = "http://www.w3.org/2003/05/soap-envelope"

	// Códigos de status (cStat) relevantes ao fluxo da NFC-e.
	CStatAutorizado             = "100" // infProt: uso autorizado
	CStatInutilizacaoHomologada = "102" // infInut: inutilização homologada
	CStatLoteRecebido           = "103" // retEnviNFe: lote recebido, aguardar recibo
	CStatLoteProcessado         = "104" // retConsReciNFe: resultado disponível em protNFe
	CStatLoteEmProcessamento    = "105" // retConsReciNFe: consultar de novo
	CStatEventoRegistrado       = "135" // infEvento: evento registrado e vinculado
)

// Serviços do web service e seus namespaces WSDL.
const (
	svcAutorizacao    = "NFeAutorizacao4"
	svcRetAutorizacao = "NFeRetAutorizacao4"
	svcConsulta       = "NFeConsultaProtocolo4"
	svcEvento         = "NFeRecepcaoEvento4"
	svcInutilizacao   = "NFeInutilizacao4"
)

// Endpoints da SEFAZ-SP para NFC-e (modelo 65) por ambiente.
var endpoints = map[string]map[string]string{
	nfe.AmbienteProducao: {
		svcAutorizacao:    "https://nfce.fazenda.sp.gov.br/ws/NFeAutorizacao4.asmx",
		svcRetAutorizacao: "https://nfce.fazenda.sp.gov.br/ws/NFeRetAutorizacao4.asmx",
		svcConsulta:       "https://nfce.fazenda.sp.gov.br/ws/NFeConsultaProtocolo4.asmx",
		svcEvento:         "https://nfce.fazenda.sp.gov.br/ws/NFeRecepcaoEvento4.asmx",
		svcInutilizacao:   "https://nfce.fazenda.sp.gov.br/ws/NFeInutilizacao4.asmx",
	},
	nfe.AmbienteHomologacao: {
		svcAutorizacao:    "https://homologacao.nfce.fazenda.sp.gov.br/ws/NFeAutorizacao4.asmx",
		svcRetAutorizacao: "https://homologacao.nfce.fazenda.sp.gov.br/ws/NFeRetAutorizacao4.asmx",
		svcConsulta:       "https://homologacao.nfce.fazenda.sp.gov.br/ws/NFeConsultaProtocolo4.asmx",
		svcEvento:         "https://homologacao.nfce.fazenda.sp.gov.br/ws/NFeRecepcaoEvento4.asmx",
		svcInutilizacao:   "https://homologacao.nfce.fazenda.sp.gov.br/ws/NFeInutilizacao4.asmx",
	},
}

// ── Resultado normalizado ─────────────────────────────────────────────────────

// Result resposta normalizada de qualquer operação do web service. Falhas de
// transporte nunca viram erro de Go: voltam como Success=false e
// Transient=true para o job decidir o retry.
type Result struct {
	Success   bool
	Pending   bool // lote recebido ou ainda em processamento
	Transient bool // falha de comunicação; vale reagendar

	CStat  string
	Motivo string

	Recibo      string // nRec (autorização assíncrona)
	Protocolo   string // nProt (autorização, cancelamento, inutilização)
	ChaveAcesso string // chNFe ecoada no infProt
}

// ── Cliente SOAP ──────────────────────────────────────────────────────────────

// Config parâmetros do cliente SOAP.
type Config struct {
	Ambiente string // "1" produção, "2" homologação
	UF       string
	CNPJ     string // CNPJ do emitente (eventos e inutilização)
	Timeout  time.Duration

	// EndpointOverride direciona todas as operações para uma única URL.
	// Usado nos testes; vazio em produção.
	EndpointOverride string
}

// Client fala SOAP 1.2 com os web services da SEFAZ. O httpClient deve vir
// configurado com o certificado de cliente exigido pelo TLS mútuo.
type Client struct {
	cfg        Config
	httpClient *http.Client
	signer     Signer
}

// NewClient constrói o cliente. httpClient nulo ganha um padrão com o
// timeout da configuração.
func NewClient(cfg Config, signer Signer, httpClient *http.Client) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, httpClient: httpClient, signer: signer}
}

// ── Estruturas SOAP ───────────────────────────────────────────────────────────

type soapEnvelope struct {
	XMLName xml.Name `xml:"soap12:Envelope"`
	XmlnsS  string   `xml:"xmlns:soap12,attr"`
	Body    soapBody `xml:"soap12:Body"`
}

type soapBody struct {
	DadosMsg nfeDadosMsg `xml:"nfeDadosMsg"`
}

type nfeDadosMsg struct {
	Xmlns   string `xml:"xmlns,attr"`
	Payload []byte `xml:",innerxml"`
}

type soapRespEnvelope struct {
	XMLName xml.Name     `xml:"Envelope"`
	Body    soapRespBody `xml:"Body"`
}

type soapRespBody struct {
	Fault     *soapFault    `xml:"Fault"`
	ResultMsg *nfeResultMsg `xml:"nfeResultMsg"`
}

type nfeResultMsg struct {
	Inner []byte `xml:",innerxml"`
}

type soapFault struct {
	Code   string `xml:"Code>Value"`
	Reason string `xml:"Reason>Text"`
}

// Respostas do portal fiscal, casadas por nome local.

type retEnviNFe struct {
	CStat   string `xml:"cStat"`
	XMotivo string `xml:"xMotivo"`
	InfRec  struct {
		NRec string `xml:"nRec"`
	} `xml:"infRec"`
}

type infProt struct {
	ChNFe   string `xml:"chNFe"`
	NProt   string `xml:"nProt"`
	CStat   string `xml:"cStat"`
	XMotivo string `xml:"xMotivo"`
}

type retConsReciNFe struct {
	CStat   string `xml:"cStat"`
	XMotivo string `xml:"xMotivo"`
	ProtNFe []struct {
		InfProt infProt `xml:"infProt"`
	} `xml:"protNFe"`
}

type retConsSitNFe struct {
	CStat   string `xml:"cStat"`
	XMotivo string `xml:"xMotivo"`
	ProtNFe struct {
		InfProt infProt `xml:"infProt"`
	} `xml:"protNFe"`
}

type retEnvEvento struct {
	CStat     string `xml:"cStat"`
	XMotivo   string `xml:"xMotivo"`
	RetEvento []struct {
		InfEvento struct {
			CStat   string `xml:"cStat"`
			XMotivo string `xml:"xMotivo"`
			NProt   string `xml:"nProt"`
		} `xml:"infEvento"`
	} `xml:"retEvento"`
}

type retInutNFe struct {
	InfInut struct {
		CStat   string `xml:"cStat"`
		XMotivo string `xml:"xMotivo"`
		NProt   string `xml:"nProt"`
	} `xml:"infInut"`
}

// ── Operações ─────────────────────────────────────────────────────────────────

// Authorize envia a NFC-e assinada dentro de um lote de um documento
// (envio assíncrono). cStat 103 devolve o recibo para consulta posterior.
func (c *Client) Authorize(ctx context.Context, signedNFe []byte) (*Result, error) {
	payload := fmt.Sprintf(
		`<enviNFe xmlns=%q versao=%q><idLote>%d</idLote><indSinc>0</indSinc>%s</enviNFe>`,
		NsNFe, nfe.VersaoLeiaute, time.Now().UnixMilli(), signedNFe)

	inner, res := c.call(ctx, svcAutorizacao, []byte(payload))
	if res != nil {
		return res, nil
	}

	var ret retEnviNFe
	if err := xml.Unmarshal(inner, &ret); err != nil {
		return unexpectedResponse(inner), nil
	}
	if ret.CStat == CStatLoteRecebido {
		return &Result{
			Pending: true,
			CStat:   ret.CStat,
			Motivo:  ret.XMotivo,
			Recibo:  ret.InfRec.NRec,
		}, nil
	}
	return &Result{CStat: ret.CStat, Motivo: ret.XMotivo}, nil
}

// QueryReceipt consulta o resultado do processamento de um recibo. cStat 105
// significa lote ainda na fila; 104 traz o protocolo definitivo no protNFe.
func (c *Client) QueryReceipt(ctx context.Context, recibo string) (*Result, error) {
	payload := fmt.Sprintf(
		`<consReciNFe xmlns=%q versao=%q><tpAmb>%s</tpAmb><nRec>%s</nRec></consReciNFe>`,
		NsNFe, nfe.VersaoLeiaute, c.cfg.Ambiente, recibo)

	inner, res := c.call(ctx, svcRetAutorizacao, []byte(payload))
	if res != nil {
		return res, nil
	}

	var ret retConsReciNFe
	if err := xml.Unmarshal(inner, &ret); err != nil {
		return unexpectedResponse(inner), nil
	}
	if ret.CStat == CStatLoteEmProcessamento {
		return &Result{Pending: true, CStat: ret.CStat, Motivo: ret.XMotivo, Recibo: recibo}, nil
	}
	if ret.CStat != CStatLoteProcessado || len(ret.ProtNFe) == 0 {
		return &Result{CStat: ret.CStat, Motivo: ret.XMotivo}, nil
	}

	prot := ret.ProtNFe[0].InfProt
	return &Result{
		Success:     prot.CStat == CStatAutorizado,
		CStat:       prot.CStat,
		Motivo:      prot.XMotivo,
		Protocolo:   prot.NProt,
		ChaveAcesso: prot.ChNFe,
	}, nil
}

// QueryStatus consulta a situação atual de uma chave de acesso.
func (c *Client) QueryStatus(ctx context.Context, chave string) (*Result, error) {
	payload := fmt.Sprintf(
		`<consSitNFe xmlns=%q versao=%q><tpAmb>%s</tpAmb><xServ>CONSULTAR</xServ><chNFe>%s</chNFe></consSitNFe>`,
		NsNFe, nfe.VersaoLeiaute, c.cfg.Ambiente, chave)

	inner, res := c.call(ctx, svcConsulta, []byte(payload))
	if res != nil {
		return res, nil
	}

	var ret retConsSitNFe
	if err := xml.Unmarshal(inner, &ret); err != nil {
		return unexpectedResponse(inner), nil
	}
	return &Result{
		Success:     ret.CStat == CStatAutorizado,
		CStat:       ret.CStat,
		Motivo:      ret.XMotivo,
		Protocolo:   ret.ProtNFe.InfProt.NProt,
		ChaveAcesso: chave,
	}, nil
}

// Cancel registra o evento de cancelamento (tpEvento 110111) de uma nota
// autorizada. O infEvento é assinado antes do envio; cStat 135 confirma.
func (c *Client) Cancel(ctx context.Context, cert tls.Certificate, chave, protocolo, justificativa string) (*Result, error) {
	raw, err := BuildCancelEvent(CancelEventParams{
		Chave:         chave,
		Protocolo:     protocolo,
		Justificativa: justificativa,
		CNPJ:          c.cfg.CNPJ,
		UF:            c.cfg.UF,
		Ambiente:      c.cfg.Ambiente,
		Emissao:       time.Now(),
	})
	if err != nil {
		return nil, err
	}
	signed, err := c.signer.Sign(raw, cert, "infEvento")
	if err != nil {
		return nil, fmt.Errorf("sefaz: erro ao assinar evento de cancelamento: %w", err)
	}

	inner, res := c.call(ctx, svcEvento, signed)
	if res != nil {
		return res, nil
	}

	var ret retEnvEvento
	if err := xml.Unmarshal(inner, &ret); err != nil {
		return unexpectedResponse(inner), nil
	}
	if len(ret.RetEvento) == 0 {
		return &Result{CStat: ret.CStat, Motivo: ret.XMotivo}, nil
	}
	ev := ret.RetEvento[0].InfEvento
	return &Result{
		Success:     ev.CStat == CStatEventoRegistrado,
		CStat:       ev.CStat,
		Motivo:      ev.XMotivo,
		Protocolo:   ev.NProt,
		ChaveAcesso: chave,
	}, nil
}

// Inutilizar homologa a inutilização de uma faixa de numeração nunca usada.
// cStat 102 confirma.
func (c *Client) Inutilizar(ctx context.Context, cert tls.Certificate, p InutilizacaoParams) (*Result, error) {
	p.CNPJ = defaultIfEmpty(p.CNPJ, c.cfg.CNPJ)
	p.UF = defaultIfEmpty(p.UF, c.cfg.UF)
	p.Ambiente = defaultIfEmpty(p.Ambiente, c.cfg.Ambiente)

	raw, err := BuildInutilizacao(p)
	if err != nil {
		return nil, err
	}
	signed, err := c.signer.Sign(raw, cert, "infInut")
	if err != nil {
		return nil, fmt.Errorf("sefaz: erro ao assinar pedido de inutilização: %w", err)
	}

	inner, res := c.call(ctx, svcInutilizacao, signed)
	if res != nil {
		return res, nil
	}

	var ret retInutNFe
	if err := xml.Unmarshal(inner, &ret); err != nil {
		return unexpectedResponse(inner), nil
	}
	return &Result{
		Success:   ret.InfInut.CStat == CStatInutilizacaoHomologada,
		CStat:     ret.InfInut.CStat,
		Motivo:    ret.InfInut.XMotivo,
		Protocolo: ret.InfInut.NProt,
	}, nil
}

// ── Transporte ────────────────────────────────────────────────────────────────

// call envolve o payload no envelope SOAP 1.2, posta e devolve o conteúdo do
// nfeResultMsg. Falhas de transporte e faults voltam no segundo retorno como
// Result pronto; nesse caso o primeiro retorno é nulo.
func (c *Client) call(ctx context.Context, service string, payload []byte) ([]byte, *Result) {
	url := c.cfg.EndpointOverride
	if url == "" {
		amb, ok := endpoints[c.cfg.Ambiente]
		if !ok {
			return nil, &Result{Motivo: fmt.Sprintf("ambiente desconhecido %q", c.cfg.Ambiente)}
		}
		url = amb[service]
	}

	envelope := soapEnvelope{
		XmlnsS: soapNS12,
		Body: soapBody{
			DadosMsg: nfeDadosMsg{
				Xmlns:   "http://www.portalfiscal.inf.br/nfe/wsdl/" + service,
				Payload: payload,
			},
		},
	}
	xmlPayload, err := xml.Marshal(envelope)
	if err != nil {
		return nil, &Result{Motivo: fmt.Sprintf("erro ao serializar envelope SOAP: %v", err)}
	}
	body := append([]byte(xml.Header), xmlPayload...)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &Result{Motivo: fmt.Sprintf("erro ao montar request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Result{Transient: true, Motivo: fmt.Sprintf("falha de comunicação com a SEFAZ: %v", err)}
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // max 1 MB
	if err != nil {
		return nil, &Result{Transient: true, Motivo: fmt.Sprintf("erro ao ler resposta da SEFAZ: %v", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Result{Transient: true, Motivo: fmt.Sprintf("SEFAZ respondeu HTTP %d", resp.StatusCode)}
	}

	var envResp soapRespEnvelope
	if err := xml.Unmarshal(rawBody, &envResp); err != nil {
		return nil, unexpectedResponse(rawBody)
	}
	if envResp.Body.Fault != nil {
		return nil, &Result{
			Motivo: fmt.Sprintf("SOAP Fault [%s]: %s", envResp.Body.Fault.Code, envResp.Body.Fault.Reason),
		}
	}
	if envResp.Body.ResultMsg == nil {
		return nil, unexpectedResponse(rawBody)
	}
	return envResp.Body.ResultMsg.Inner, nil
}

// unexpectedBodyMax limite do trecho de corpo citado no Motivo; o Motivo vai
// direto para error_message da venda, então nada de páginas HTML inteiras.
const unexpectedBodyMax = 256

// unexpectedResponse cobre corpo que não parseia como SOAP ou como o ret*
// esperado. Tratado como falha de transporte: proxies e páginas de manutenção
// da SEFAZ produzem exatamente isso.
func unexpectedResponse(raw []byte) *Result {
	body := string(raw)
	if len(body) > unexpectedBodyMax {
		body = body[:unexpectedBodyMax] + "..."
	}
	return &Result{Transient: true, Motivo: "resposta inesperada da SEFAZ: " + body}
}
