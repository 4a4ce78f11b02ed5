package services

import (
	"context"
	"fmt"
	"strings"

	"recharge-wallet/internal/models"

	"github.com/rs/zerolog"
)

const defaultServiceType = "Prepaid"

// DirectoryService mirrors the provider's operator and bank catalogues into local
// storage. Entries are upserted by natural key and never deleted.
type DirectoryService struct {
	ledger   DirectoryLedger
	provider DirectoryProvider
	logger   zerolog.Logger
}

func NewDirectoryService(l DirectoryLedger, provider DirectoryProvider, logger zerolog.Logger) *DirectoryService {
	return &DirectoryService{
		ledger:   l,
		provider: provider,
		logger:   logger.With().Str("component", "directory").Logger(),
	}
}

func (s *DirectoryService) SyncOperators(ctx context.Context) (*models.SyncReport, error) {
	infos, err := s.provider.GetOperators(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error fetching operator list from provider")
		return nil, fmt.Errorf("fetch operators: %w", err)
	}

	seen := make(map[string]struct{}, len(infos))
	operators := make([]models.Operator, 0, len(infos))
	for _, info := range infos {
		code := strings.TrimSpace(info.Code)
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}

		serviceType := strings.TrimSpace(info.Category)
		if serviceType == "" {
			serviceType = defaultServiceType
		}
		name := strings.TrimSpace(info.Name)
		if name == "" {
			name = code
		}
		operators = append(operators, models.Operator{
			OperatorCode: code,
			OperatorName: name,
			ServiceType:  serviceType,
		})
	}

	n, err := s.ledger.UpsertOperators(ctx, operators)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error storing operator list")
		return nil, fmt.Errorf("store operators: %w", err)
	}

	s.logger.Info().Int("fetched", len(infos)).Int("upserted", n).Msg("Operator directory synced")
	return &models.SyncReport{Fetched: len(infos), Upserted: n}, nil
}

func (s *DirectoryService) SyncBanks(ctx context.Context) (*models.SyncReport, error) {
	infos, err := s.provider.GetBanks(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error fetching bank list from provider")
		return nil, fmt.Errorf("fetch banks: %w", err)
	}

	seen := make(map[string]struct{}, len(infos))
	banks := make([]models.Bank, 0, len(infos))
	for _, info := range infos {
		code := strings.TrimSpace(info.Code)
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}

		b := models.Bank{BankCode: code, BankName: strings.TrimSpace(info.Name)}
		if b.BankName == "" {
			b.BankName = code
		}
		if ifsc := strings.TrimSpace(info.IFSC); ifsc != "" {
			b.IFSC = &ifsc
		}
		banks = append(banks, b)
	}

	n, err := s.ledger.UpsertBanks(ctx, banks)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error storing bank list")
		return nil, fmt.Errorf("store banks: %w", err)
	}

	s.logger.Info().Int("fetched", len(infos)).Int("upserted", n).Msg("Bank directory synced")
	return &models.SyncReport{Fetched: len(infos), Upserted: n}, nil
}

func (s *DirectoryService) ListOperators(ctx context.Context, activeOnly bool) ([]*models.Operator, error) {
	return s.ledger.ListOperators(ctx, activeOnly)
}

func (s *DirectoryService) ListBanks(ctx context.Context) ([]*models.Bank, error) {
	return s.ledger.ListBanks(ctx)
}

func (s *DirectoryService) SetOperatorActive(ctx context.Context, code string, active bool) error {
	if err := s.ledger.SetOperatorActive(ctx, code, active); err != nil {
		return err
	}
	s.logger.Info().Str("operator_code", code).Bool("active", active).Msg("Operator availability changed")
	return nil
}
