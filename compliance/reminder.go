package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/phillip/levy-collector-go/utils"
)

const DefaultTemplate = "Dear {name}, this is a friendly reminder about your pending community payments. " +
	"Please contact your collector or visit our office to settle your dues. " +
	"Total amount: ₦{amount}. Thank you for your cooperation."

type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelVoice    Channel = "voice"
)

// unit cost per message, in naira
var channelCosts = map[Channel]int64{
	ChannelSMS:      5,
	ChannelWhatsApp: 3,
	ChannelVoice:    15,
}

var ErrUnknownChannel = errors.New("unknown reminder channel")

func ParseChannel(s string) (Channel, error) {
	c := Channel(strings.ToLower(strings.TrimSpace(s)))
	if c == "" {
		return ChannelSMS, nil
	}
	if _, ok := channelCosts[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownChannel, s)
	}
	return c, nil
}

func (c Channel) UnitCost() decimal.Decimal {
	return decimal.NewFromInt(channelCosts[c])
}

type Quote struct {
	Channel   Channel         `json:"channel"`
	Count     int             `json:"count"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

func QuoteFor(c Channel, count int) Quote {
	unit := c.UnitCost()
	return Quote{
		Channel:   c,
		Count:     count,
		UnitCost:  unit,
		TotalCost: unit.Mul(decimal.NewFromInt(int64(count))),
	}
}

// Render fills the {name} and {amount} placeholders. An empty template
// falls back to DefaultTemplate.
func Render(template string, t Trader) string {
	if strings.TrimSpace(template) == "" {
		template = DefaultTemplate
	}
	return strings.NewReplacer(
		"{name}", t.Name,
		"{amount}", utils.GroupDigits(t.TotalOwed),
	).Replace(template)
}

// Sender delivers one rendered reminder.
type Sender interface {
	Send(ctx context.Context, channel, to, body string) error
}

// LogSender only logs; it stands in when no messaging gateway is configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(_ context.Context, channel, to, body string) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("reminder (dry run)", "channel", channel, "to", to, "chars", len(body))
	return nil
}

type Failure struct {
	Phone string `json:"phone"`
	Error string `json:"error"`
}

type Report struct {
	Channel   Channel         `json:"channel"`
	Sent      int             `json:"sent"`
	Failed    int             `json:"failed"`
	TotalCost decimal.Decimal `json:"total_cost"`
	Failures  []Failure       `json:"failures,omitempty"`
}

const dispatchConcurrency = 4

// Dispatch renders and sends one reminder per trader. A failed send is
// recorded and does not stop the others; only delivered messages are costed.
func Dispatch(ctx context.Context, sender Sender, c Channel, template string, traders []Trader) Report {
	var (
		mu  sync.Mutex
		rep = Report{Channel: c}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dispatchConcurrency)
	for _, t := range traders {
		g.Go(func() error {
			err := sender.Send(gctx, string(c), t.Phone, Render(template, t))

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				rep.Failed++
				rep.Failures = append(rep.Failures, Failure{Phone: t.Phone, Error: err.Error()})
				return nil
			}
			rep.Sent++
			return nil
		})
	}
	_ = g.Wait()

	rep.TotalCost = QuoteFor(c, rep.Sent).TotalCost
	return rep
}
