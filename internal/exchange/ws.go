package exchange

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// StreamMiniTicker — последняя цена по символу через miniTicker-стрим.
// Реконнект с нарастающей паузой, пинг раз в 15 секунд.
func (c *Client) StreamMiniTicker(ctx context.Context, symbol string) <-chan float64 {
	ch := make(chan float64)
	go func() {
		defer close(ch)
		url := c.wsURL + "/" + strings.ToLower(symbol) + "@miniTicker"
		retry := 0
		for {
			conn, _, err := c.wsDialer.Dial(url, nil)
			if err != nil {
				retry++
				if retry > 8 {
					return
				}
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Duration(300*retry) * time.Millisecond):
				}
				continue
			}
			retry = 0

			stopPing := make(chan struct{})
			go func() {
				t := time.NewTicker(15 * time.Second)
				defer t.Stop()
				for {
					select {
					case <-stopPing:
						return
					case <-ctx.Done():
						return
					case <-t.C:
						_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
					}
				}
			}()

			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					close(stopPing)
					_ = conn.Close()
					break
				}
				var frame struct {
					Event string `json:"e"`
					Sym   string `json:"s"`
					Close string `json:"c"`
				}
				if err := sonic.Unmarshal(msg, &frame); err == nil && frame.Event == "24hrMiniTicker" {
					if px, err := strconv.ParseFloat(frame.Close, 64); err == nil && px != 0 {
						c.SetPrice(frame.Sym, px)
						select {
						case ch <- px:
						case <-ctx.Done():
							_ = conn.Close()
							return
						}
					}
				}
			}

			select {
			case <-ctx.Done():
				return
			default:
				time.Sleep(1 * time.Second)
			}
		}
	}()
	return ch
}
