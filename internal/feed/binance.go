package feed

import (
	"context"
	"fmt"
	"strings"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"
)

const (
	BinanceBaseWsURL = "wss://stream.binance.com:9443/ws"
	DefaultInterval  = "1m"

	// QuantityPlaces is the precision of kline volumes. Markets fed from
	// Binance should keep at least this many places, otherwise fractional
	// orders on thin bars never fill.
	QuantityPlaces int32 = 8
)

type BinancePub struct {
	wss *ws.WebSocket
}

func NewBinancePub(ctx context.Context, url string) *BinancePub {
	if url == "" {
		url = BinanceBaseWsURL
	}
	return &BinancePub{
		wss: ws.New(ctx, url),
	}
}

func (repo *BinancePub) Len() int {
	return repo.wss.Len()
}

func (repo *BinancePub) Close() {
	repo.wss.Close()
}

func (repo *BinancePub) StartWebsocket(ctx context.Context) error {
	if err := repo.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}

	return nil
}

type BinanceSubscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

type BinanceSubscribeResponse struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

func subscriberResponseParser(m ws.Message) (BinanceSubscribeResponse, bool) {
	var resp BinanceSubscribeResponse
	err := m.Unmarshal(&resp)
	return resp, err == nil
}

func klineStreams(symbols []string, interval string) []string {
	params := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		params = append(params, fmt.Sprintf("%s@kline_%s", strings.ToLower(symbol), interval))
	}
	return params
}

// SubscribeKline subscribes 'Kline/Candlestick Stream' of every symbol.
func (repo *BinancePub) SubscribeKline(ctx context.Context, symbols []string, interval string) error {
	const requestID = 1
	appendIntoRegister := true
	if err := repo.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, ws *ws.WebSocket) error {
			payload := BinanceSubscribeRequest{
				Method: "SUBSCRIBE",
				Params: klineStreams(symbols, interval),
				ID:     requestID,
			}

			if err := ws.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}

			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			resp, ok := subscriberResponseParser(m)
			if !ok || resp.ID != requestID {
				return false, nil
			}

			if resp.Result != nil {
				return false, errors.Errorf("subscribe and wait, err: %+v", resp.Result)
			}
			return true, nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}

	return nil
}

// ObserveKline delivers kline events until ctx is done, the process shuts
// down or the subscription is cancelled.
func (repo *BinancePub) ObserveKline(ctx context.Context, handler func(k BinanceKline)) (unsubscribe func()) {
	ch, cancel := repo.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					logs.Info("kline channel closed")
					return
				}

				resp, ok := ws.ReadMessage[BinanceKline](m)
				if !ok || resp.EventType != "kline" {
					continue
				}

				handler(resp)
			}
		}
	}()

	return cancel
}
