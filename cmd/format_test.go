package cmd

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/lukman83/pricewatch/internal/models"
)

func TestCleanURL(t *testing.T) {
	got := cleanURL("https://www.amazon.com.br/dp/B0C8ZQTRD7?ref=sr_1_1&th=1#reviews")
	if got != "https://www.amazon.com.br/dp/B0C8ZQTRD7" {
		t.Errorf("cleanURL = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("Placa de Vídeo", 9); got != "Placa ..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("SSD", 10); got != "SSD" {
		t.Errorf("truncate = %q", got)
	}
}

func TestReadingLine(t *testing.T) {
	p := func(f float64) *float64 { return &f }
	target := decimal.NewFromInt(200)

	tests := []struct {
		name string
		r    models.Reading
		want string
	}{
		{"on target", models.Reading{Price: p(150), Available: true, Changed: true}, "R$ 150,00  [on target, -R$ 50,00 / 25.0%]  *"},
		{"above", models.Reading{Price: p(250), Available: true}, "R$ 250,00"},
		{"unavailable", models.Reading{Price: p(150)}, "R$ 150,00  [unavailable]"},
		{"failed", models.Reading{Error: "fetch failed:\n  status 503"}, "-  fetch failed: status 503"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := readingLine(tt.r, target); got != tt.want {
				t.Errorf("readingLine = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTargetsOf(t *testing.T) {
	m := targetsOf([]models.Product{{ID: "a"}, {ID: "b"}})
	if len(m) != 2 || !strings.EqualFold(m["b"].ID, "b") {
		t.Errorf("targetsOf = %v", m)
	}
}
