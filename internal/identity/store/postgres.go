package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"smartcore/internal/identity/models"
	"smartcore/pkg/domain"
	"smartcore/pkg/platform/sentinel"
	"smartcore/pkg/platform/tx"
)

// PostgresStore persists identities, claims, and trusted issuers.
//
// Schema:
//
//	CREATE TABLE identities (
//	    address TEXT PRIMARY KEY,
//	    country INT NOT NULL
//	);
//	CREATE TABLE identity_claims (
//	    address    TEXT   NOT NULL REFERENCES identities(address) ON DELETE CASCADE,
//	    topic      BIGINT NOT NULL,
//	    issuer     TEXT   NOT NULL,
//	    data       BYTEA,
//	    signature  BYTEA,
//	    expires_at BIGINT NOT NULL DEFAULT 0,
//	    added_seq  BIGSERIAL,
//	    PRIMARY KEY (address, topic, issuer)
//	);
//	CREATE TABLE trusted_issuers (
//	    issuer    TEXT PRIMARY KEY,
//	    topics    BIGINT[] NOT NULL,
//	    added_seq BIGSERIAL
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// q picks the transaction bound to ctx via tx.WithTx, if any, falling
// back to the pool.
func (s *PostgresStore) q(ctx context.Context) tx.Querier {
	return tx.Select(ctx, s.pool)
}

func (s *PostgresStore) UpsertIdentity(ctx context.Context, addr domain.Address, country domain.CountryCode) error {
	_, err := s.q(ctx).Exec(ctx, `
		INSERT INTO identities (address, country) VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE SET country = EXCLUDED.country`,
		addr.String(), int(country))
	if err != nil {
		return fmt.Errorf("upsert identity: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteIdentity(ctx context.Context, addr domain.Address) error {
	tag, err := s.q(ctx).Exec(ctx, `DELETE FROM identities WHERE address = $1`, addr.String())
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetIdentity(ctx context.Context, addr domain.Address) (*models.Identity, error) {
	var country int
	err := s.q(ctx).QueryRow(ctx, `SELECT country FROM identities WHERE address = $1`, addr.String()).Scan(&country)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get identity: %w", err)
	}
	ident := &models.Identity{Address: addr, Country: domain.CountryCode(country)}

	rows, err := s.q(ctx).Query(ctx, `
		SELECT topic, issuer, data, signature, expires_at
		FROM identity_claims WHERE address = $1 ORDER BY added_seq`, addr.String())
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			topic     int64
			issuer    string
			data, sig []byte
			expiresAt int64
		)
		if err := rows.Scan(&topic, &issuer, &data, &sig, &expiresAt); err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		ident.Claims = append(ident.Claims, models.Claim{
			Topic:     domain.Topic(topic),
			Issuer:    domain.Address(issuer),
			Data:      data,
			Signature: sig,
			ExpiresAt: uint64(expiresAt),
		})
	}
	return ident, rows.Err()
}

func (s *PostgresStore) AddClaim(ctx context.Context, addr domain.Address, claim models.Claim) error {
	tag, err := s.q(ctx).Exec(ctx, `
		INSERT INTO identity_claims (address, topic, issuer, data, signature, expires_at)
		SELECT $1, $2, $3, $4, $5, $6
		WHERE EXISTS (SELECT 1 FROM identities WHERE address = $1)
		ON CONFLICT (address, topic, issuer) DO UPDATE
		SET data = EXCLUDED.data, signature = EXCLUDED.signature, expires_at = EXCLUDED.expires_at`,
		addr.String(), int64(claim.Topic), claim.Issuer.String(), claim.Data, claim.Signature, int64(claim.ExpiresAt))
	if err != nil {
		return fmt.Errorf("add claim: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) RemoveClaim(ctx context.Context, addr domain.Address, topic domain.Topic, issuer domain.Address) error {
	tag, err := s.q(ctx).Exec(ctx, `
		DELETE FROM identity_claims WHERE address = $1 AND topic = $2 AND issuer = $3`,
		addr.String(), int64(topic), issuer.String())
	if err != nil {
		return fmt.Errorf("remove claim: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ClaimsByTopic(ctx context.Context, addr domain.Address, topic domain.Topic) ([]models.Claim, error) {
	ident, err := s.GetIdentity(ctx, addr)
	if err != nil {
		return nil, err
	}
	var out []models.Claim
	for _, c := range ident.Claims {
		if c.Topic == topic {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *PostgresStore) AddTrustedIssuer(ctx context.Context, issuer domain.Address, topics []domain.Topic) error {
	raw := make([]int64, len(topics))
	for i, t := range topics {
		raw[i] = int64(t)
	}
	_, err := s.q(ctx).Exec(ctx, `
		INSERT INTO trusted_issuers (issuer, topics) VALUES ($1, $2)
		ON CONFLICT (issuer) DO UPDATE SET topics = EXCLUDED.topics`,
		issuer.String(), raw)
	if err != nil {
		return fmt.Errorf("add trusted issuer: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveTrustedIssuer(ctx context.Context, issuer domain.Address) error {
	tag, err := s.q(ctx).Exec(ctx, `DELETE FROM trusted_issuers WHERE issuer = $1`, issuer.String())
	if err != nil {
		return fmt.Errorf("remove trusted issuer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) IsTrustedIssuerFor(ctx context.Context, issuer domain.Address, topic domain.Topic) (bool, error) {
	var trusted bool
	err := s.q(ctx).QueryRow(ctx, `
		SELECT $2 = ANY(topics) FROM trusted_issuers WHERE issuer = $1`,
		issuer.String(), int64(topic)).Scan(&trusted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check trusted issuer: %w", err)
	}
	return trusted, nil
}

func (s *PostgresStore) TrustedIssuersFor(ctx context.Context, topic domain.Topic) ([]domain.Address, error) {
	rows, err := s.q(ctx).Query(ctx, `
		SELECT issuer FROM trusted_issuers WHERE $1 = ANY(topics) ORDER BY added_seq`,
		int64(topic))
	if err != nil {
		return nil, fmt.Errorf("list trusted issuers: %w", err)
	}
	defer rows.Close()
	var out []domain.Address
	for rows.Next() {
		var issuer string
		if err := rows.Scan(&issuer); err != nil {
			return nil, fmt.Errorf("scan trusted issuer: %w", err)
		}
		out = append(out, domain.Address(issuer))
	}
	return out, rows.Err()
}
