package ledger

import (
	"coin_portal/internal/domain" // Domain models
	"context"                     // Request context
	"fmt"                         // Error wrapping
	"strconv"                     // Cache key formatting
	"strings"                     // Cache key building
	"time"                        // Date filters

	"github.com/sirupsen/logrus" // Logging library
)

// Stats is the admin overview folded over every account
type Stats struct {
	TotalAccounts int64 `json:"total_accounts"`
	Active        int64 `json:"active"`
	Suspended     int64 `json:"suspended"`
	TotalBalance  int64 `json:"total_balance"`
	TotalCalls    int64 `json:"total_calls"`
}

// Stats aggregates the account table. The result is cached until the next committed mutation.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if found, err := s.cache.Get(ctx, statsCacheKey, &stats); err == nil && found {
		return &stats, nil
	}
	err := s.db.WithContext(ctx).Model(&domain.Account{}).Select(
		"COUNT(*) AS total_accounts, "+
			"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS active, "+
			"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS suspended, "+
			"COALESCE(SUM(balance), 0) AS total_balance, "+
			"COALESCE(SUM(total_calls), 0) AS total_calls",
		domain.StatusActive, domain.StatusSuspended,
	).Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate stats: %w", err)
	}
	if err := s.cache.Set(ctx, statsCacheKey, stats); err != nil {
		s.log.WithError(err).Warn("Stats cache write failed")
	}
	return &stats, nil
}

// AccountPage is one page of the admin user table
type AccountPage struct {
	Accounts   []domain.Account `json:"users"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	Total      int64            `json:"total"`
	TotalPages int              `json:"total_pages"`
}

// ListAccounts returns one page of accounts, oldest first
func (s *Service) ListAccounts(ctx context.Context, page Page) (*AccountPage, error) {
	page = page.Normalize()
	cacheKey := "admin:accounts:page=" + strconv.Itoa(page.Number) + ":size=" + strconv.Itoa(page.Size)
	var cached AccountPage
	if found, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && found {
		return &cached, nil
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&domain.Account{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count accounts: %w", err)
	}
	accounts := []domain.Account{}
	if err := s.db.WithContext(ctx).Order("created_at, id").Offset(page.offset()).Limit(page.Size).Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	res := AccountPage{
		Accounts:   accounts,
		Page:       page.Number,
		PageSize:   page.Size,
		Total:      total,
		TotalPages: totalPages(total, page.Size),
	}
	_ = s.cache.Set(ctx, cacheKey, res)
	return &res, nil
}

// TransactionFilter narrows the admin transaction listing. Zero fields do not filter.
type TransactionFilter struct {
	AccountID string
	Type      domain.TransactionType
	From      time.Time
	To        time.Time
	Page      Page
}

func (f TransactionFilter) cacheKey() string {
	parts := []string{
		"account_id=" + f.AccountID,
		"type=" + string(f.Type),
		"from=" + strconv.FormatInt(unixMilli(f.From), 10),
		"to=" + strconv.FormatInt(unixMilli(f.To), 10),
		"page=" + strconv.Itoa(f.Page.Number),
		"size=" + strconv.Itoa(f.Page.Size),
	}
	return "admin:txs:" + strings.Join(parts, ":")
}

// TransactionPage is one page of the admin transaction listing
type TransactionPage struct {
	Transactions []domain.Transaction `json:"transactions"`
	Page         int                  `json:"page"`
	PageSize     int                  `json:"page_size"`
	Total        int64                `json:"total"`
	TotalPages   int                  `json:"total_pages"`
}

// ListAllTransactions returns one page of every account transactions, newest first
func (s *Service) ListAllTransactions(ctx context.Context, filter TransactionFilter) (*TransactionPage, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, domain.ErrInvalidType
	}
	filter.Page = filter.Page.Normalize()
	cacheKey := filter.cacheKey()
	var cached TransactionPage
	if found, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && found {
		return &cached, nil
	}

	query := s.db.WithContext(ctx).Model(&domain.Transaction{})
	if filter.AccountID != "" {
		query = query.Where("account_id = ?", filter.AccountID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if !filter.From.IsZero() {
		query = query.Where("created_at >= ?", filter.From.UnixMilli())
	}
	if !filter.To.IsZero() {
		query = query.Where("created_at <= ?", filter.To.UnixMilli())
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count transactions: %w", err)
	}
	txs := []domain.Transaction{}
	if err := query.Order("created_at DESC, id DESC").Offset(filter.Page.offset()).Limit(filter.Page.Size).Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	res := TransactionPage{
		Transactions: txs,
		Page:         filter.Page.Number,
		PageSize:     filter.Page.Size,
		Total:        total,
		TotalPages:   totalPages(total, filter.Page.Size),
	}
	if err := s.cache.Set(ctx, cacheKey, res); err != nil {
		s.log.WithFields(logrus.Fields{"key": cacheKey, "error": err.Error()}).Warn("Transaction page cache write failed")
	}
	return &res, nil
}

func totalPages(total int64, size int) int {
	return (int(total) + size - 1) / size
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
