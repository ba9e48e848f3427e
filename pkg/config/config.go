package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config agrupa a configuração da aplicação (leitura via Viper, env e
// opcionalmente arquivo .env).
type Config struct {
	App   AppConfig
	DB    DBConfig
	HTTP  HTTPConfig
	Sefaz SefazConfig
}

// SefazConfig configuração da emissão NFC-e e da comunicação com a SEFAZ.
type SefazConfig struct {
	Ambiente     string // "1" = Produção, "2" = Homologação
	UF           string // Sigla da UF do emitente (endpoint e QR code); padrão "SP"
	CertPath     string // Caminho do certificado .pfx/.p12 (vazio = não configurado)
	CertPassword string // Senha do bundle PKCS#12
	CSCID        string // Identificador do CSC (QR code)
	CSCToken     string // Token do CSC, usado só no hash do QR code, nunca na assinatura
	TimeoutSec   int    // Timeout de rede das chamadas SOAP
	MaxPolls     int    // Máximo de consultas de recibo por tentativa de transmissão
}

// AppConfig configuração geral da aplicação.
type AppConfig struct {
	Env  string // development, staging, production
	Name string
}

// DBConfig configuração do PostgreSQL.
// Se DatabaseURL não estiver vazio, é usado como connection string completo.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
}

// ConnectionString devolve o DSN a usar: DATABASE_URL se definido, senão o DSN montado.
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN monta o connection string do PostgreSQL com URL encoding para
// caracteres especiais na senha.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// HTTPConfig configuração do servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr devolve o endereço de escuta (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load lê a configuração de variáveis de ambiente (e opcionalmente de arquivo).
// As env vars têm prioridade. Nomes esperados: APP_ENV, DB_HOST, SEFAZ_CERT_PATH, etc.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos erro se não existe

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Env:  getString(v, "APP_ENV", "development"),
			Name: getString(v, "APP_NAME", "nfce-api"),
		},
		DB: DBConfig{
			DatabaseURL: getString(v, "DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", "localhost"),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "nfce"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 8080),
		},
		Sefaz: SefazConfig{
			Ambiente:     getString(v, "SEFAZ_AMBIENTE", "2"),
			UF:           getString(v, "SEFAZ_UF", "SP"),
			CertPath:     getString(v, "SEFAZ_CERT_PATH", ""),
			CertPassword: getString(v, "SEFAZ_CERT_PASSWORD", ""),
			CSCID:        getString(v, "SEFAZ_CSC_ID", ""),
			CSCToken:     getString(v, "SEFAZ_CSC_TOKEN", ""),
			TimeoutSec:   getInt(v, "SEFAZ_TIMEOUT_SEC", 60),
			MaxPolls:     getInt(v, "SEFAZ_MAX_POLLS", 5),
		},
	}

	return cfg, nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case string:
			n, _ := strconv.Atoi(v.GetString(key))
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}
