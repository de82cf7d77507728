package notify

import (
	"context"
	"fmt"
	"strings"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5"

	"github.com/nhsiciliano/bot-binance-nh/internal/exchange"
	timesync "github.com/nhsiciliano/bot-binance-nh/internal/modules/timesync/service"
	"github.com/nhsiciliano/bot-binance-nh/internal/storage"
	"github.com/nhsiciliano/bot-binance-nh/pkg/db"
	"github.com/nhsiciliano/bot-binance-nh/pkg/logger"
)

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
	SendError(msg string)
}

// Telegram — пассивный нотифайер плюс команды: /status, /balance, /trades.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
	ex     *exchange.Client
	clk    *timesync.Clock
	txm    *db.PgTxManager
	trades *storage.Trades
}

func NewTelegram(token string, chatID int64, ex *exchange.Client, clk *timesync.Clock, txm *db.PgTxManager) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{
		bot:    b,
		chatID: chatID,
		ex:     ex,
		clk:    clk,
		txm:    txm,
		trades: storage.NewTrades(),
	}, nil
}

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	_, _ = t.bot.Send(tgbot.NewMessage(t.chatID, msg))
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

func (t *Telegram) SendError(msg string) { t.Send("❗️ " + msg) }

func (t *Telegram) handleStatus() {
	t.Sendf("🩺 STATUS | clock=%s | offset=%dms | lastSync=%s",
		t.clk.State(), t.clk.Offset().Milliseconds(),
		t.clk.LastSyncAt().Format("15:04:05"))
}

func (t *Telegram) handleBalance(ctx context.Context) {
	balances, err := t.ex.Balances(ctx)
	if err != nil {
		t.Sendf("❗️ Balance error: %v", err)
		return
	}
	if len(balances) == 0 {
		t.Send("📭 No funded assets")
		return
	}

	var b strings.Builder
	b.WriteString("💰 Balances:\n")
	for _, bal := range balances {
		fmt.Fprintf(&b, "- %s free=%.8f locked=%.8f\n", bal.Asset, bal.Free, bal.Locked)
	}
	t.Send(b.String())
}

// handleTrades показывает последние сделки: /trades SYMBOL.
func (t *Telegram) handleTrades(ctx context.Context, symbol string) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		t.Send("Usage: /trades BTCUSDT")
		return
	}

	var out string
	err := t.txm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		trades, err := t.trades.RecentBySymbol(ctxTx, tx, symbol, 10)
		if err != nil {
			return err
		}
		if len(trades) == 0 {
			out = "📭 No trades for " + symbol
			return nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "🧾 Last trades %s:\n", symbol)
		for _, tr := range trades {
			fmt.Fprintf(&b, "%s %s amount=%.6f total=%.2f\n",
				tr.Timestamp.Format("01-02 15:04"), strings.ToUpper(string(tr.Side)),
				tr.Amount, tr.Total)
		}
		out = b.String()
		return nil
	})
	if err != nil {
		t.Sendf("❗️ Trades error: %v", err)
		return
	}
	t.Send(out)
}

// Start: long-polling для команд.
func (t *Telegram) Start(ctx context.Context) error {
	if t == nil || t.bot == nil {
		return nil
	}

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}

	updates := t.bot.GetUpdatesChan(u)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd := <-updates:
				if upd.Message != nil && upd.Message.Chat != nil &&
					upd.Message.Chat.ID == t.chatID && upd.Message.IsCommand() {

					switch upd.Message.Command() {
					case "status":
						go t.handleStatus()
					case "balance":
						go t.handleBalance(ctx)
					case "trades":
						go t.handleTrades(ctx, upd.Message.CommandArguments())
					}
				}
			}
		}
	}()
	return nil
}

func (t *Telegram) Stop() {}

// Stdout — заглушка, всё в лог.
type Stdout struct{}

func NewStdout() *Stdout                           { return &Stdout{} }
func (s *Stdout) Send(msg string)                  { logger.Info("%s", msg) }
func (s *Stdout) Sendf(format string, args ...any) { logger.Info(format, args...) }
func (s *Stdout) SendError(msg string)             { logger.Error("%s", msg) }
