package credentials

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"outputrocks-nodes/internal/common/errors"
)

const createCredentialsTable = `CREATE TABLE IF NOT EXISTS node_credentials (
	credential_type TEXT NOT NULL,
	credential_id   TEXT NOT NULL,
	data            JSONB NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (credential_type, credential_id)
)`

// PostgresStore keeps credentials in the node_credentials table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the credentials table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createCredentialsTable); err != nil {
		return fmt.Errorf("create node_credentials: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, credentialType, id string) (Data, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM node_credentials WHERE credential_type = $1 AND credential_id = $2`,
		credentialType, id,
	).Scan(&raw)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewCredentialNotFoundError(credentialType, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load credential %s/%s: %w", credentialType, id, err)
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode credential %s/%s: %w", credentialType, id, err)
	}
	return data, nil
}

func (s *PostgresStore) Save(ctx context.Context, credentialType, id string, data Data) error {
	if err := validate(credentialType, data); err != nil {
		return err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode credential %s/%s: %w", credentialType, id, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO node_credentials (credential_type, credential_id, data, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (credential_type, credential_id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		credentialType, id, raw,
	)
	if err != nil {
		return fmt.Errorf("save credential %s/%s: %w", credentialType, id, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, credentialType, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM node_credentials WHERE credential_type = $1 AND credential_id = $2`,
		credentialType, id,
	)
	if err != nil {
		return fmt.Errorf("delete credential %s/%s: %w", credentialType, id, err)
	}
	return nil
}
