// Package auditlog writes a best-effort request trail to Postgres. The trail
// is non-authoritative observability data: writes are asynchronous, failures
// are logged and never affect the request being served.
package auditlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

// Entry is one served request.
type Entry struct {
	ClientHash  string
	Endpoint    string
	StatusCode  int
	TotalTokens int
	CacheHit    bool
	Streamed    bool
	LatencyMs   int64
	ErrorMsg    string
}

// Recorder accepts audit entries.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// Nop discards entries; used when no DATABASE_URL is configured.
type Nop struct{}

// Record discards the entry.
func (Nop) Record(ctx context.Context, e Entry) {}

// Postgres writes entries to the gateway_logs table.
type Postgres struct {
	conn *sql.DB
	log  zerolog.Logger
}

// NewPostgres opens the audit database and verifies the connection.
func NewPostgres(databaseURL string, log zerolog.Logger) (*Postgres, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(10)
	conn.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return &Postgres{
		conn: conn,
		log:  log.With().Str("component", "auditlog").Logger(),
	}, nil
}

// Close closes the database connection.
func (p *Postgres) Close() error {
	return p.conn.Close()
}

// Record inserts the entry. The caller's context is not used for the insert
// itself so that a cancelled client request still gets its trail row.
func (p *Postgres) Record(ctx context.Context, e Entry) {
	query := `
		INSERT INTO gateway_logs (
			id, client_hash, endpoint, status_code, total_tokens,
			cache_hit, streamed, latency_ms, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	`

	insertCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := p.conn.ExecContext(insertCtx, query,
		uuid.NewString(),
		e.ClientHash,
		e.Endpoint,
		e.StatusCode,
		e.TotalTokens,
		e.CacheHit,
		e.Streamed,
		e.LatencyMs,
		e.ErrorMsg,
	)
	if err != nil {
		p.log.Warn().Err(err).Msg("audit log insert failed")
	}
}
