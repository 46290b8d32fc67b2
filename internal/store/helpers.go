package store

import (
	"database/sql"
	"fmt"

	"github.com/BTreeMap/AgentMint/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

const mintRecordColumns = `id, participant_id, wallet_address, metadata_url, tx_hash, status, error, created_at`

// scanMintRecords reads every row of a mint_records query.
func scanMintRecords(rows *sql.Rows) ([]models.MintRecord, error) {
	defer rows.Close()

	var out []models.MintRecord
	for rows.Next() {
		var m models.MintRecord
		var txHash, lastError sql.NullString
		if err := rows.Scan(&m.ID, &m.ParticipantID, &m.WalletAddress, &m.MetadataURL, &txHash, &m.Status, &lastError, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan mint record failed: %w", err)
		}
		m.TxHash = txHash.String
		m.Error = lastError.String
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mint record rows: %w", err)
	}
	return out, nil
}
