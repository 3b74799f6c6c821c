// Package etcd encapsula el acceso a configuración centralizada en etcd.
//
// Las claves viven bajo el namespace "/<app>/<env>/"; el cliente opera
// siempre relativo a ese prefijo.
package etcd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/namespace"
)

const (
	defaultTimeoutSeconds = 5
	envEndpoints          = "ETCD_ENDPOINTS"
	envTimeout            = "ETCD_TIMEOUT"
	envScope              = "ENV"
)

// KV es el subconjunto de operaciones de etcd que el cliente usa. Permite
// sustituir el backend en tests.
type KV interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
	Delete(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.DeleteResponse, error)
}

// Client opera sobre el namespace "/<app>/<env>/" de un clúster etcd.
type Client struct {
	raw     *clientv3.Client
	kv      KV
	app     string
	env     string
	timeout time.Duration
}

// Option ajusta la configuración del cliente antes de conectar.
type Option func(*settings)

type settings struct {
	endpoints []string
	timeout   time.Duration
	app       string
	env       string
	prefix    string
}

// WithEndpoints fija los endpoints del clúster.
func WithEndpoints(eps ...string) Option { return func(s *settings) { s.endpoints = eps } }

// WithTimeout fija el timeout de dial y de cada operación.
func WithTimeout(t time.Duration) Option { return func(s *settings) { s.timeout = t } }

// WithApp fija el segmento de aplicación del namespace.
func WithApp(name string) Option { return func(s *settings) { s.app = name } }

// WithEnv fija el segmento de entorno del namespace.
func WithEnv(env string) Option { return func(s *settings) { s.env = env } }

// WithPrefix fija un prefijo de namespace explícito, anulando app/env.
func WithPrefix(p string) Option { return func(s *settings) { s.prefix = p } }

// EndpointsFromEnv lee ETCD_ENDPOINTS (lista separada por comas). Retorna nil
// si la variable no está definida o queda vacía tras limpiar espacios.
func EndpointsFromEnv() []string {
	var clean []string
	for _, part := range strings.Split(os.Getenv(envEndpoints), ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			clean = append(clean, trimmed)
		}
	}
	return clean
}

func defaultSettings() *settings {
	timeout := defaultTimeoutSeconds
	if i, err := strconv.Atoi(os.Getenv(envTimeout)); err == nil {
		timeout = i
	}

	s := &settings{
		endpoints: []string{"http://127.0.0.1:2379"},
		timeout:   time.Duration(timeout) * time.Second,
		app:       "default",
		env:       firstNonEmpty(os.Getenv(envScope), "development"),
	}
	if eps := EndpointsFromEnv(); len(eps) > 0 {
		s.endpoints = eps
	}
	return s
}

// New conecta al clúster y retorna un cliente namespaced.
func New(opts ...Option) (*Client, error) {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(cfg)
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.endpoints,
		DialTimeout: cfg.timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating etcd client: %w", err)
	}

	if cfg.prefix == "" {
		cfg.prefix = fmt.Sprintf("/%s/%s/", cfg.app, cfg.env)
	}

	return &Client{
		raw:     cli,
		kv:      namespace.NewKV(cli, cfg.prefix),
		app:     cfg.app,
		env:     cfg.env,
		timeout: cfg.timeout,
	}, nil
}

// NamespacePrefix retorna el prefijo absoluto del cliente, "/<app>/<env>/".
func (c *Client) NamespacePrefix() string {
	return fmt.Sprintf("/%s/%s/", c.app, c.env)
}

// GetVar lee una clave relativa al namespace. Error si no existe.
func (c *Client) GetVar(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.kv.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to get key %s: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return "", fmt.Errorf("key not found: %s", key)
	}
	return string(resp.Kvs[0].Value), nil
}

// GetVarWithDefault lee una clave; ante ausencia o error retorna el default.
func (c *Client) GetVarWithDefault(ctx context.Context, key, defaultValue string) (string, error) {
	value, err := c.GetVar(ctx, key)
	if err != nil {
		return defaultValue, nil
	}
	return value, nil
}

// GetVarInt lee una clave y la parsea como entero.
func (c *Client) GetVarInt(ctx context.Context, key string) (int, error) {
	value, err := c.GetVar(ctx, key)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(value)
}

// GetVarIntWithDefault lee una clave como entero con fallback al default.
func (c *Client) GetVarIntWithDefault(ctx context.Context, key string, defaultValue int) (int, error) {
	value, err := c.GetVarInt(ctx, key)
	if err != nil {
		return defaultValue, nil
	}
	return value, nil
}

// GetVarBool lee una clave y la parsea como booleano.
func (c *Client) GetVarBool(ctx context.Context, key string) (bool, error) {
	value, err := c.GetVar(ctx, key)
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(value)
}

// GetVarBoolWithDefault lee una clave como booleano con fallback al default.
func (c *Client) GetVarBoolWithDefault(ctx context.Context, key string, defaultValue bool) (bool, error) {
	value, err := c.GetVarBool(ctx, key)
	if err != nil {
		return defaultValue, nil
	}
	return value, nil
}

// GetVarDuration lee una clave como milisegundos y retorna la duración.
func (c *Client) GetVarDuration(ctx context.Context, key string) (time.Duration, error) {
	value, err := c.GetVarInt(ctx, key)
	if err != nil {
		return 0, err
	}
	return time.Duration(value) * time.Millisecond, nil
}

// GetVarDurationWithDefault lee una duración en ms con fallback al default.
func (c *Client) GetVarDurationWithDefault(ctx context.Context, key string, defaultValue time.Duration) (time.Duration, error) {
	value, err := c.GetVarDuration(ctx, key)
	if err != nil {
		return defaultValue, nil
	}
	return value, nil
}

// SetVar escribe una clave relativa al namespace.
func (c *Client) SetVar(ctx context.Context, key, val string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.kv.Put(ctx, key, val); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// DeleteVar elimina una clave relativa al namespace.
func (c *Client) DeleteVar(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.kv.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Close cierra la conexión con el clúster.
func (c *Client) Close() error {
	if c.raw != nil {
		return c.raw.Close()
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
