package store

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/levy-collector-go/models"
)

func TestMongoFilterEscapesRegex(t *testing.T) {
	f := mongoFilter(Filter{Search: " a.b( ", Collector: "amaka+1"})

	or, ok := f["$or"].(bson.A)
	if !ok || len(or) != 3 {
		t.Fatalf("$or = %#v", f["$or"])
	}
	want := primitive.Regex{Pattern: `a\.b\(`, Options: "i"}
	for _, clause := range or {
		for field, v := range clause.(bson.M) {
			if v != want {
				t.Errorf("%s = %#v, want %#v", field, v, want)
			}
		}
	}
	if got := f["collector"]; got != (primitive.Regex{Pattern: `amaka\+1`, Options: "i"}) {
		t.Errorf("collector = %#v", got)
	}
}

func TestMongoFilterCollectorExactIsAnchored(t *testing.T) {
	f := mongoFilter(Filter{Collector: "bello", CollectorExact: "amaka@example.com"})
	want := primitive.Regex{Pattern: `^amaka@example\.com$`, Options: "i"}
	if got := f["collector"]; got != want {
		t.Fatalf("collector = %#v, want %#v", got, want)
	}
}

func TestMongoFilterDateRangeAndType(t *testing.T) {
	from := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	f := mongoFilter(Filter{From: from, To: to, PaymentType: models.PaymentSchoolFees})
	created, ok := f["created_at"].(bson.M)
	if !ok || created["$gte"] != from || created["$lt"] != to {
		t.Fatalf("created_at = %#v", f["created_at"])
	}
	if f["payment_type"] != string(models.PaymentSchoolFees) {
		t.Fatalf("payment_type = %#v", f["payment_type"])
	}

	if f := mongoFilter(Filter{To: to}); len(f["created_at"].(bson.M)) != 1 {
		t.Fatalf("open range = %#v", f)
	}
	if f := mongoFilter(Filter{}); len(f) != 0 {
		t.Fatalf("empty filter = %#v", f)
	}
}

type amountDoc struct {
	Amount decimal.Decimal `bson:"amount"`
}

func TestMongoRegistryDecimalRoundTrip(t *testing.T) {
	reg := MongoRegistry()
	in := amountDoc{Amount: decimal.RequireFromString("100.005")}

	raw, err := bson.MarshalWithRegistry(reg, in)
	if err != nil {
		t.Fatal(err)
	}
	if typ := bson.Raw(raw).Lookup("amount").Type; typ != bson.TypeDecimal128 {
		t.Fatalf("stored as %v, want decimal128", typ)
	}

	var out amountDoc
	if err := bson.UnmarshalWithRegistry(reg, raw, &out); err != nil {
		t.Fatal(err)
	}
	if !out.Amount.Equal(in.Amount) {
		t.Fatalf("amount = %s, want %s", out.Amount, in.Amount)
	}
}

func TestMongoRegistryDecodesLooseAmounts(t *testing.T) {
	reg := MongoRegistry()
	for _, tt := range []struct {
		name string
		in   any
		want string
	}{
		{"double", 12.5, "12.5"},
		{"int32", int32(700), "700"},
		{"int64", int64(1500), "1500"},
		{"string", "1500.25", "1500.25"},
		{"null", nil, "0"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := bson.Marshal(bson.M{"amount": tt.in})
			if err != nil {
				t.Fatal(err)
			}
			var out amountDoc
			if err := bson.UnmarshalWithRegistry(reg, raw, &out); err != nil {
				t.Fatal(err)
			}
			if !out.Amount.Equal(decimal.RequireFromString(tt.want)) {
				t.Fatalf("amount = %s, want %s", out.Amount, tt.want)
			}
		})
	}

	raw, _ := bson.Marshal(bson.M{"amount": true})
	var out amountDoc
	if err := bson.UnmarshalWithRegistry(reg, raw, &out); err == nil {
		t.Fatal("bool amount decoded without error")
	}
}
