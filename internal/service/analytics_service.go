package service

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradejournal/internal/repository"
)

var hundred = decimal.NewFromInt(100)

// Summary is the basic performance overview shown on the dashboard
type Summary struct {
	TotalTrades  int              `json:"total_trades"`
	OpenTrades   int              `json:"open_trades"`
	ClosedTrades int              `json:"closed_trades"`
	Wins         int              `json:"wins"`
	Losses       int              `json:"losses"`
	Breakeven    int              `json:"breakeven"`
	WinRate      decimal.Decimal  `json:"win_rate"` // percent of closed trades
	GrossProfit  decimal.Decimal  `json:"gross_profit"`
	GrossLoss    decimal.Decimal  `json:"gross_loss"`
	NetPnL       decimal.Decimal  `json:"net_pnl"`
	TotalFees    decimal.Decimal  `json:"total_fees"`
	ProfitFactor *decimal.Decimal `json:"profit_factor"`
	AverageWin   decimal.Decimal  `json:"average_win"`
	AverageLoss  decimal.Decimal  `json:"average_loss"`
	BestTrade    *decimal.Decimal `json:"best_trade"`
	WorstTrade   *decimal.Decimal `json:"worst_trade"`
	BySymbol     []SymbolSummary  `json:"by_symbol"`
}

// SymbolSummary is the per-symbol slice of a Summary
type SymbolSummary struct {
	Symbol       string          `json:"symbol"`
	Trades       int             `json:"trades"`
	ClosedTrades int             `json:"closed_trades"`
	Wins         int             `json:"wins"`
	NetPnL       decimal.Decimal `json:"net_pnl"`
	WinRate      decimal.Decimal `json:"win_rate"`
}

// AnalyticsService computes performance statistics from logged trades
type AnalyticsService struct {
	tradeRepo TradeStore
}

// NewAnalyticsService creates a new AnalyticsService
func NewAnalyticsService(tradeRepo TradeStore) *AnalyticsService {
	return &AnalyticsService{tradeRepo: tradeRepo}
}

// Summary aggregates the user's trades entered within [from, to]; nil bounds are open
func (s *AnalyticsService) Summary(ctx context.Context, userID uint, from, to *time.Time) (*Summary, error) {
	trades, err := s.tradeRepo.GetByUserID(ctx, userID, repository.TradeFilter{From: from, To: to})
	if err != nil {
		return nil, err
	}

	sum := &Summary{BySymbol: []SymbolSummary{}}
	bySymbol := make(map[string]*SymbolSummary)

	for i := range trades {
		t := &trades[i]
		sum.TotalTrades++
		sum.TotalFees = sum.TotalFees.Add(t.Fees)

		sym := bySymbol[t.Symbol]
		if sym == nil {
			sym = &SymbolSummary{Symbol: t.Symbol}
			bySymbol[t.Symbol] = sym
		}
		sym.Trades++

		pnl := t.PnL()
		if pnl == nil {
			sum.OpenTrades++
			continue
		}

		sum.ClosedTrades++
		sym.ClosedTrades++
		sum.NetPnL = sum.NetPnL.Add(*pnl)
		sym.NetPnL = sym.NetPnL.Add(*pnl)

		switch pnl.Sign() {
		case 1:
			sum.Wins++
			sym.Wins++
			sum.GrossProfit = sum.GrossProfit.Add(*pnl)
		case -1:
			sum.Losses++
			sum.GrossLoss = sum.GrossLoss.Add(pnl.Abs())
		default:
			sum.Breakeven++
		}

		if sum.BestTrade == nil || pnl.GreaterThan(*sum.BestTrade) {
			best := *pnl
			sum.BestTrade = &best
		}
		if sum.WorstTrade == nil || pnl.LessThan(*sum.WorstTrade) {
			worst := *pnl
			sum.WorstTrade = &worst
		}
	}

	sum.WinRate = percent(sum.Wins, sum.ClosedTrades)
	if sum.Wins > 0 {
		sum.AverageWin = sum.GrossProfit.Div(decimal.NewFromInt(int64(sum.Wins))).Round(8)
	}
	if sum.Losses > 0 {
		sum.AverageLoss = sum.GrossLoss.Div(decimal.NewFromInt(int64(sum.Losses))).Round(8)
	}
	if sum.GrossLoss.IsPositive() {
		pf := sum.GrossProfit.Div(sum.GrossLoss).Round(4)
		sum.ProfitFactor = &pf
	}

	for _, sym := range bySymbol {
		sym.WinRate = percent(sym.Wins, sym.ClosedTrades)
		sum.BySymbol = append(sum.BySymbol, *sym)
	}
	sort.Slice(sum.BySymbol, func(i, j int) bool {
		return sum.BySymbol[i].Symbol < sum.BySymbol[j].Symbol
	})

	return sum, nil
}

func percent(part, whole int) decimal.Decimal {
	if whole == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(part)).Mul(hundred).Div(decimal.NewFromInt(int64(whole))).Round(2)
}
