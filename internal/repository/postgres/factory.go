package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"

	repo "github.com/auripay/auripay-backend/internal/repository"
)

type Repositories struct {
	Ledger   repo.Ledger
	Balances repo.BalanceSnapshots
	Audit    repo.AuditLogs
}

func NewRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Ledger:   &transactionsRepo{pool},
		Balances: &balancesRepo{pool},
		Audit:    &auditLogsRepo{pool},
	}
}
