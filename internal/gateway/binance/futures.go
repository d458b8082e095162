// Package binance implements the exchange capability set against Binance
// USD-M futures via the go-binance SDK.
package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"kestrel/internal/gateway/exchange"
	"kestrel/internal/market"
	"kestrel/internal/scheduler"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
)

const maxKlineLimit = 1500

type Gateway struct {
	cfg    Config
	client *futures.Client
}

var _ exchange.Exchange = (*Gateway)(nil)

func New(cfg Config) (*Gateway, error) {
	final := cfg.withDefaults()
	client := futures.NewClient(final.APIKey, final.APISecret)
	client.BaseURL = final.RESTBaseURL
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyEnabled && final.RESTProxyURL != "" {
		proxyURL, err := url.Parse(final.RESTProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	return &Gateway{cfg: final, client: client}, nil
}

func (g *Gateway) Name() string { return "binance-futures" }

func (g *Gateway) RecentCandles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxKlineLimit {
		limit = maxKlineLimit
	}
	symbol = cleanSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	kls, err := g.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
			Trades:    kl.TradeNum,
		})
	}
	if dur, ok := scheduler.ParseIntervalDuration(interval); ok {
		out = scheduler.DropUnclosedKline(out, dur)
	}
	return out, nil
}

func (g *Gateway) MarkPrice(ctx context.Context, symbol string) (float64, error) {
	symbol = cleanSymbol(symbol)
	if symbol == "" {
		return 0, fmt.Errorf("symbol is required")
	}
	res, err := g.client.NewPremiumIndexService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, err
	}
	for _, entry := range res {
		if entry == nil {
			continue
		}
		if strings.EqualFold(entry.Symbol, symbol) {
			return parseFloat(entry.MarkPrice), nil
		}
	}
	return 0, fmt.Errorf("mark price not available for %s", symbol)
}

func (g *Gateway) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	symbol = cleanSymbol(symbol)
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if leverage <= 0 {
		return fmt.Errorf("leverage must be positive, got %d", leverage)
	}
	_, err := g.client.NewChangeLeverageService().Symbol(symbol).Leverage(leverage).Do(ctx)
	return err
}

func (g *Gateway) SubmitMarketOrder(ctx context.Context, req exchange.MarketOrderRequest) (*exchange.OrderFill, error) {
	symbol := cleanSymbol(req.Symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("order quantity must be positive, got %.8f", req.Quantity)
	}
	svc := g.client.NewCreateOrderService().
		Symbol(symbol).
		Side(sideType(req.Side)).
		Type(futures.OrderTypeMarket).
		Quantity(formatQty(req.Quantity)).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT)
	if req.ReduceOnly {
		svc = svc.ReduceOnly(true)
	}
	resp, err := svc.Do(ctx)
	if err != nil {
		return nil, err
	}
	fill := &exchange.OrderFill{
		OrderID:  resp.OrderID,
		Symbol:   symbol,
		Side:     req.Side,
		Quantity: parseFloat(resp.ExecutedQuantity),
		AvgPrice: parseFloat(resp.AvgPrice),
		FilledAt: time.UnixMilli(resp.UpdateTime),
	}
	if fill.Quantity <= 0 {
		fill.Quantity = req.Quantity
	}
	// Some venues report AvgPrice=0 on the immediate ACK. Fall back to the
	// mark price so bracket placement still has a reference.
	if fill.AvgPrice <= 0 {
		mark, markErr := g.MarkPrice(ctx, symbol)
		if markErr != nil {
			return nil, fmt.Errorf("order %d filled but no fill price available: %w", resp.OrderID, markErr)
		}
		fill.AvgPrice = mark
	}
	return fill, nil
}

func (g *Gateway) SubmitStopOrder(ctx context.Context, req exchange.TriggerOrderRequest) error {
	return g.submitTriggerOrder(ctx, req, futures.OrderTypeStopMarket)
}

func (g *Gateway) SubmitTakeProfitOrder(ctx context.Context, req exchange.TriggerOrderRequest) error {
	return g.submitTriggerOrder(ctx, req, futures.OrderTypeTakeProfitMarket)
}

func (g *Gateway) submitTriggerOrder(ctx context.Context, req exchange.TriggerOrderRequest, orderType futures.OrderType) error {
	symbol := cleanSymbol(req.Symbol)
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if req.Quantity <= 0 {
		return fmt.Errorf("order quantity must be positive, got %.8f", req.Quantity)
	}
	if req.TriggerPrice <= 0 {
		return fmt.Errorf("trigger price must be positive, got %.8f", req.TriggerPrice)
	}
	_, err := g.client.NewCreateOrderService().
		Symbol(symbol).
		Side(sideType(req.Side)).
		Type(orderType).
		Quantity(formatQty(req.Quantity)).
		StopPrice(formatQty(req.TriggerPrice)).
		WorkingType(futures.WorkingTypeMarkPrice).
		ReduceOnly(true).
		Do(ctx)
	return err
}

func (g *Gateway) CancelAllOrders(ctx context.Context, symbol string) error {
	symbol = cleanSymbol(symbol)
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	return g.client.NewCancelAllOpenOrdersService().Symbol(symbol).Do(ctx)
}

func (g *Gateway) ListOpenPositions(ctx context.Context) ([]exchange.Position, error) {
	risks, err := g.client.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]exchange.Position, 0, len(risks))
	for _, r := range risks {
		if r == nil {
			continue
		}
		amt := parseFloat(r.PositionAmt)
		if amt == 0 {
			continue
		}
		side := "long"
		if amt < 0 {
			side = "short"
			amt = -amt
		}
		out = append(out, exchange.Position{
			Symbol:        strings.ToUpper(r.Symbol),
			Side:          side,
			Amount:        amt,
			EntryPrice:    parseFloat(r.EntryPrice),
			Leverage:      parseFloat(r.Leverage),
			MarkPrice:     parseFloat(r.MarkPrice),
			UnrealizedPnL: parseFloat(r.UnRealizedProfit),
			UpdatedAt:     time.Now(),
		})
	}
	return out, nil
}

func (g *Gateway) Balance(ctx context.Context) (exchange.Balance, error) {
	balances, err := g.client.NewGetBalanceService().Do(ctx)
	if err != nil {
		return exchange.Balance{}, err
	}
	for _, b := range balances {
		if b == nil {
			continue
		}
		if strings.EqualFold(b.Asset, g.cfg.StakeAsset) {
			return exchange.Balance{
				Asset:     g.cfg.StakeAsset,
				Total:     parseFloat(b.Balance),
				Available: parseFloat(b.AvailableBalance),
				UpdatedAt: time.Now(),
			}, nil
		}
	}
	return exchange.Balance{}, fmt.Errorf("no %s balance reported", g.cfg.StakeAsset)
}

func sideType(s exchange.Side) futures.SideType {
	if s == exchange.SideSell {
		return futures.SideTypeSell
	}
	return futures.SideTypeBuy
}

func cleanSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	return strings.ReplaceAll(symbol, "/", "")
}

// formatQty renders quantities and prices without exponent notation, which
// the venue rejects.
func formatQty(v float64) string {
	return decimal.NewFromFloat(v).String()
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}
