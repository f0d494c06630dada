package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lukman83/pricewatch/internal/models"
	"github.com/lukman83/pricewatch/internal/price"
)

const DefaultNtfyServer = "https://ntfy.sh"

// Ntfy publishes push notifications to an ntfy topic.
type Ntfy struct {
	Server string
	Topic  string
	Client *http.Client

	now func() time.Time
}

func NewNtfy(server, topic string, client *http.Client) *Ntfy {
	if server == "" {
		server = DefaultNtfyServer
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Ntfy{Server: strings.TrimRight(server, "/"), Topic: topic, Client: client, now: time.Now}
}

type ntfyMessage struct {
	Title    string
	Priority string
	Tags     string
	Actions  string
	Body     string
}

// Notify sends a price alert. Readings that are not eligible are skipped.
func (n *Ntfy) Notify(ctx context.Context, r models.Reading, target decimal.Decimal) error {
	if !Eligible(r, target) {
		return nil
	}
	savings, pct := Savings(*r.Price, target)
	body := fmt.Sprintf("%s\n%s\n\n%s\n\nEconomia: %s (%s%% abaixo)",
		r.ProductName, siteLabel(r), price.FormatFloatBRL(*r.Price), price.FormatBRL(savings), pct.StringFixed(1))

	err := n.publish(ctx, ntfyMessage{
		Title:    "ALERTA DE PRECO!",
		Priority: "high",
		Tags:     "moneybag,bell",
		Actions:  "view, Ver Produto, " + r.URL,
		Body:     body,
	})
	if err != nil {
		return err
	}
	log.Printf("[ntfy] alert sent: %s at %s (%s)", r.ProductName, price.FormatFloatBRL(*r.Price), r.SiteID)
	return nil
}

func (n *Ntfy) SendSummary(ctx context.Context, readings []models.Reading, products []models.Product) error {
	s := BuildSummary(readings, products, n.now())
	if err := n.publish(ctx, ntfyMessage{Title: s.Title, Priority: s.Priority, Tags: s.Tags, Body: s.Body}); err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	log.Printf("[ntfy] summary sent: %d products, %d on target", s.Stats.Products, s.Stats.OnTarget)
	return nil
}

func (n *Ntfy) SendTest(ctx context.Context) error {
	return n.publish(ctx, ntfyMessage{
		Title:    "ntfy configurado!",
		Priority: "default",
		Tags:     "white_check_mark",
		Body:     "O monitor de preços está pronto para enviar alertas.\n\nVocê receberá notificações quando os preços atingirem suas metas.",
	})
}

func (n *Ntfy) publish(ctx context.Context, m ntfyMessage) error {
	if n.Topic == "" {
		return errors.New("ntfy: topic not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.Server+"/"+n.Topic, strings.NewReader(m.Body))
	if err != nil {
		return fmt.Errorf("ntfy: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Title", m.Title)
	req.Header.Set("Priority", m.Priority)
	req.Header.Set("Tags", m.Tags)
	if m.Actions != "" {
		req.Header.Set("Actions", m.Actions)
	}

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("ntfy: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("ntfy: publish returned %s", resp.Status)
	}
	return nil
}
