package services

import (
	"context"
	"log/slog"

	"github.com/auripay/auripay-backend/internal/airtime"
	"github.com/auripay/auripay-backend/internal/daraja"
	"github.com/auripay/auripay-backend/internal/models"
	repo "github.com/auripay/auripay-backend/internal/repository"
)

// BalanceGateway is the slice of the gateway client the balance flow
// needs.
type BalanceGateway interface {
	RequestAccountBalance(ctx context.Context) (daraja.CommandAck, error)
}

// ProviderAccounts reads the reward provider's reseller balance.
type ProviderAccounts interface {
	AccountDetailsWithFallback(ctx context.Context) airtime.AccountDetails
}

// BalanceService stores gateway balance snapshots (one row per
// sub-account, latest wins) and surfaces the airtime provider's balance
// for display.
type BalanceService struct {
	snaps    repo.BalanceSnapshots
	gateway  BalanceGateway
	provider ProviderAccounts
	log      *slog.Logger
}

func NewBalanceService(snaps repo.BalanceSnapshots, g BalanceGateway, p ProviderAccounts, log *slog.Logger) *BalanceService {
	return &BalanceService{snaps: snaps, gateway: g, provider: p, log: log}
}

// RequestGatewayBalance fires the async balance command; the snapshots
// arrive later on the balance result callback.
func (s *BalanceService) RequestGatewayBalance(ctx context.Context) (daraja.CommandAck, error) {
	return s.gateway.RequestAccountBalance(ctx)
}

// ApplySnapshots upserts one row per sub-account bucket.
func (s *BalanceService) ApplySnapshots(ctx context.Context, snaps []models.BalanceSnapshot) error {
	for _, snap := range snaps {
		if err := s.snaps.Upsert(ctx, snap); err != nil {
			return err
		}
		s.log.Info("balance snapshot stored", "account", snap.AccountType, "currency", snap.Currency, "amount", snap.Amount)
	}
	return nil
}

func (s *BalanceService) List(ctx context.Context) ([]models.BalanceSnapshot, error) {
	return s.snaps.List(ctx)
}

// ProviderBalance never fails; a zero/unknown sentinel comes back when the
// provider is unreachable so dashboard rendering is never aborted.
func (s *BalanceService) ProviderBalance(ctx context.Context) airtime.AccountDetails {
	return s.provider.AccountDetailsWithFallback(ctx)
}
