package chain

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// XRPLListener subscribes to the XRPL transaction stream and calls Wake when a
// validated payment lands on an address the store is watching. It is a latency
// optimization: the polling loop stays the source of truth.
type XRPLListener struct {
	Endpoint string
	Watched  func(ctx context.Context, address string) bool
	Wake     func()
}

func (l *XRPLListener) Run(ctx context.Context) {
	if l.Endpoint == "" {
		log.Printf("xrpl ws disabled: endpoint is empty")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		dialer := websocket.Dialer{}
		conn, _, err := dialer.DialContext(ctx, l.Endpoint, nil)
		if err != nil {
			log.Printf("xrpl ws connect failed: %v", err)
			time.Sleep(3 * time.Second)
			continue
		}
		log.Printf("xrpl ws connected %s", l.Endpoint)

		sub := map[string]any{
			"id":      1,
			"command": "subscribe",
			"streams": []string{"transactions"},
		}
		if err := conn.WriteJSON(sub); err != nil {
			log.Printf("xrpl ws subscribe failed: %v", err)
			conn.Close()
			time.Sleep(3 * time.Second)
			continue
		}

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				log.Printf("xrpl ws read failed: %v", err)
				conn.Close()
				break
			}
			dest, ok := ParseValidatedPayment(msg)
			if !ok {
				continue
			}
			if l.Watched != nil && l.Watched(ctx, dest) {
				log.Printf("xrpl ws payment observed dest=%s", dest)
				if l.Wake != nil {
					l.Wake()
				}
			}
		}

		time.Sleep(2 * time.Second)
	}
}

// ParseValidatedPayment extracts the destination of a validated Payment
// transaction from a stream message; ok is false for anything else.
func ParseValidatedPayment(msg []byte) (string, bool) {
	var env struct {
		Type        string `json:"type"`
		Validated   bool   `json:"validated"`
		Transaction struct {
			TransactionType string `json:"TransactionType"`
			Destination     string `json:"Destination"`
		} `json:"transaction"`
	}
	if err := json.Unmarshal(msg, &env); err != nil {
		return "", false
	}
	if env.Type != "transaction" || !env.Validated {
		return "", false
	}
	if env.Transaction.TransactionType != "Payment" || env.Transaction.Destination == "" {
		return "", false
	}
	return env.Transaction.Destination, true
}
