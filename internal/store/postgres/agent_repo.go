package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/agoramarket/indexer/internal/domain/model"
)

type AgentRepo struct {
	db *DB
}

func NewAgentRepo(db *DB) *AgentRepo {
	return &AgentRepo{db: db}
}

func (r *AgentRepo) Upsert(ctx context.Context, agent *model.Agent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO agents (agent_id, owner, domain, metadata_uri, is_active, registered_at, block_number, tx_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (agent_id) DO UPDATE SET
			owner = EXCLUDED.owner,
			domain = EXCLUDED.domain,
			metadata_uri = EXCLUDED.metadata_uri,
			is_active = EXCLUDED.is_active,
			registered_at = COALESCE(agents.registered_at, EXCLUDED.registered_at),
			block_number = EXCLUDED.block_number,
			tx_hash = EXCLUDED.tx_hash,
			updated_at = now()
	`, agent.AgentID, agent.Owner, agent.Domain, agent.MetadataURI, agent.IsActive,
		agent.RegisteredAt, agent.BlockNumber, agent.TxHash)
	if err != nil {
		return fmt.Errorf("upsert agent %d: %w", agent.AgentID, err)
	}
	return nil
}

// UpdateMetadata rewrites the mutable profile fields. The stub insert
// covers agents whose registration predates the indexing lookback.
func (r *AgentRepo) UpdateMetadata(ctx context.Context, agentID int64, domain, metadataURI string, blockNumber int64, txHash string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO agents (agent_id, owner, domain, metadata_uri, is_active, block_number, tx_hash)
		VALUES ($1, '', $2, $3, true, $4, $5)
		ON CONFLICT (agent_id) DO UPDATE SET
			domain = EXCLUDED.domain,
			metadata_uri = EXCLUDED.metadata_uri,
			block_number = EXCLUDED.block_number,
			tx_hash = EXCLUDED.tx_hash,
			updated_at = now()
	`, agentID, domain, metadataURI, blockNumber, txHash)
	if err != nil {
		return fmt.Errorf("update agent %d metadata: %w", agentID, err)
	}
	return nil
}

// SetActive flips is_active without touching registration fields. The
// stub insert covers agents whose registration predates the indexing
// lookback window.
func (r *AgentRepo) SetActive(ctx context.Context, agentID int64, active bool, blockNumber int64, txHash string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO agents (agent_id, owner, domain, metadata_uri, is_active, block_number, tx_hash)
		VALUES ($1, '', '', '', $2, $3, $4)
		ON CONFLICT (agent_id) DO UPDATE SET
			is_active = EXCLUDED.is_active,
			block_number = EXCLUDED.block_number,
			tx_hash = EXCLUDED.tx_hash,
			updated_at = now()
	`, agentID, active, blockNumber, txHash)
	if err != nil {
		return fmt.Errorf("set agent %d active=%t: %w", agentID, active, err)
	}
	return nil
}

func (r *AgentRepo) Get(ctx context.Context, agentID int64) (*model.Agent, error) {
	var a model.Agent
	err := r.db.QueryRowContext(ctx, `
		SELECT agent_id, owner, domain, metadata_uri, is_active, registered_at, block_number, tx_hash, created_at, updated_at
		FROM agents
		WHERE agent_id = $1
	`, agentID).Scan(
		&a.AgentID, &a.Owner, &a.Domain, &a.MetadataURI, &a.IsActive,
		&a.RegisteredAt, &a.BlockNumber, &a.TxHash, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent %d: %w", agentID, err)
	}
	return &a, nil
}
