package compliance

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/phillip/levy-collector-go/models"
)

var now = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

func paid(name, phone string, amount int64, pt models.PaymentType, daysAgo int) models.Transaction {
	return models.Transaction{
		PayerName:   name,
		PayerPhone:  phone,
		Amount:      decimal.NewFromInt(amount),
		PaymentType: pt,
		CreatedAt:   now.Add(-time.Duration(daysAgo) * 24 * time.Hour),
	}
}

func TestUnpaid(t *testing.T) {
	txs := []models.Transaction{
		paid("Musa", "0801", 1000, models.PaymentCommunityLevy, 10),
		paid("Musa", "0801", 1000, models.PaymentCommunityLevy, 50),
		paid("Kemi", "0802", 2000, models.PaymentSchoolFees, 45),
		paid("Kemi", "0802", 4000, models.PaymentDevelopmentFund, 70),
		paid("Grace", "0803", 500, models.PaymentOther, 61),
		paid("Tanko", "0804", 800, models.PaymentOther, 30),
	}

	got := Unpaid(txs, now)
	if len(got) != 2 {
		t.Fatalf("expected 2 unpaid traders, got %+v", got)
	}

	grace, kemi := got[0], got[1]
	if grace.Name != "Grace" || grace.DaysSinceLastPayment != 61 || grace.Urgency != UrgencyCritical {
		t.Fatalf("grace: %+v", grace)
	}
	// 61 days is three started periods of the 500 mean
	if !grace.TotalOwed.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("grace owed %s", grace.TotalOwed)
	}

	if kemi.Name != "Kemi" || kemi.DaysSinceLastPayment != 45 || kemi.Urgency != UrgencyUrgent {
		t.Fatalf("kemi: %+v", kemi)
	}
	if kemi.LastPayment != now.Add(-45*24*time.Hour).Format("2006-01-02") {
		t.Fatalf("kemi last payment %s", kemi.LastPayment)
	}
	if len(kemi.PaymentTypes) != 2 || kemi.PaymentTypes[0] != models.PaymentSchoolFees {
		t.Fatalf("kemi types %v", kemi.PaymentTypes)
	}
	if !kemi.TotalOwed.Equal(decimal.NewFromInt(6000)) {
		t.Fatalf("kemi owed %s", kemi.TotalOwed)
	}
}

func TestUrgencyFor(t *testing.T) {
	for days, want := range map[int]Urgency{
		29: UrgencyReminder,
		30: UrgencyReminder,
		31: UrgencyUrgent,
		60: UrgencyUrgent,
		61: UrgencyCritical,
	} {
		if got := UrgencyFor(days); got != want {
			t.Errorf("UrgencyFor(%d) = %s, want %s", days, got, want)
		}
	}
}

func TestSelectByPhone(t *testing.T) {
	traders := Unpaid([]models.Transaction{
		paid("Musa", "0803", 1000, models.PaymentCommunityLevy, 45),
		paid("Musa Ibrahim", "0803", 1000, models.PaymentCommunityLevy, 60),
		paid("Ngozi", "0805", 1000, models.PaymentSchoolFees, 40),
		paid("Ada", "0807", 1000, models.PaymentSchoolFees, 2),
	}, now)

	got := SelectByPhone(traders, []string{" 0803", "0803", "0807", "0805", ""})
	if len(got) != 2 {
		t.Fatalf("selected %+v", got)
	}
	if got[0].Name != "Musa Ibrahim" || got[0].Phone != "0803" || got[1].Phone != "0805" {
		t.Fatalf("selected %+v", got)
	}
	if SelectByPhone(traders, nil) != nil {
		t.Fatal("empty phone list selected traders")
	}
}

func TestQuote(t *testing.T) {
	tests := []struct {
		channel string
		count   int
		want    int64
	}{
		{"sms", 3, 15},
		{"whatsapp", 3, 9},
		{"voice", 2, 30},
		{"", 1, 5},
	}
	for _, tt := range tests {
		c, err := ParseChannel(tt.channel)
		if err != nil {
			t.Fatalf("ParseChannel(%q): %v", tt.channel, err)
		}
		if q := QuoteFor(c, tt.count); !q.TotalCost.Equal(decimal.NewFromInt(tt.want)) {
			t.Errorf("%s x%d = %s, want %d", c, tt.count, q.TotalCost, tt.want)
		}
	}

	if _, err := ParseChannel("pigeon"); !errors.Is(err, ErrUnknownChannel) {
		t.Fatalf("expected ErrUnknownChannel, got %v", err)
	}
}

func TestRender(t *testing.T) {
	tr := Trader{Name: "Kemi Adebayo", TotalOwed: decimal.NewFromInt(55000)}

	got := Render("", tr)
	if !strings.HasPrefix(got, "Dear Kemi Adebayo,") || !strings.Contains(got, "Total amount: ₦55,000.") {
		t.Fatalf("default render: %q", got)
	}
	if got := Render("Hi {name}, pay {amount}", tr); got != "Hi Kemi Adebayo, pay 55,000" {
		t.Fatalf("custom render: %q", got)
	}
}

type recordingSender struct {
	mu   sync.Mutex
	sent []string
	fail string
}

func (r *recordingSender) Send(_ context.Context, _, to, _ string) error {
	if to == r.fail {
		return errors.New("gateway rejected")
	}
	r.mu.Lock()
	r.sent = append(r.sent, to)
	r.mu.Unlock()
	return nil
}

func TestDispatch(t *testing.T) {
	traders := []Trader{
		{Name: "A", Phone: "01"},
		{Name: "B", Phone: "02"},
		{Name: "C", Phone: "03"},
		{Name: "D", Phone: "04"},
		{Name: "E", Phone: "05"},
	}
	sender := &recordingSender{fail: "03"}

	rep := Dispatch(context.Background(), sender, ChannelVoice, "", traders)
	if rep.Sent != 4 || rep.Failed != 1 {
		t.Fatalf("report %+v", rep)
	}
	if !rep.TotalCost.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("cost %s", rep.TotalCost)
	}
	if len(rep.Failures) != 1 || rep.Failures[0].Phone != "03" {
		t.Fatalf("failures %+v", rep.Failures)
	}
	if len(sender.sent) != 4 {
		t.Fatalf("sent %v", sender.sent)
	}
}
