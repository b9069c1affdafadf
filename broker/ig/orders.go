package ig

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/realKyawSwar/igfx-bot-timescale-update/broker"
)

type otcRequest struct {
	Epic           string   `json:"epic,omitempty"`
	Expiry         string   `json:"expiry,omitempty"`
	Direction      string   `json:"direction"`
	Size           float64  `json:"size"`
	OrderType      string   `json:"orderType"`
	StopLevel      *float64 `json:"stopLevel,omitempty"`
	LimitLevel     *float64 `json:"limitLevel,omitempty"`
	DealReference  string   `json:"dealReference,omitempty"`
	DealID         string   `json:"dealId,omitempty"`
	ForceOpen      bool     `json:"forceOpen"`
	GuaranteedStop bool     `json:"guaranteedStop"`
	CurrencyCode   string   `json:"currencyCode,omitempty"`
}

type dealReferenceResponse struct {
	DealReference string `json:"dealReference"`
}

type confirmResponse struct {
	DealID     string  `json:"dealId"`
	DealStatus string  `json:"dealStatus"`
	Reason     string  `json:"reason"`
	Level      float64 `json:"level"`
	Size       float64 `json:"size"`
}

// SubmitOrder places a market order (or closes an open deal when
// req.Closing) and confirms the outcome via the deal-confirmation
// endpoint. The request's Reference is passed as the IG dealReference, so
// a retried submission after a transport failure confirms against the
// same deal instead of opening a second one.
func (c *Client) SubmitOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	otc := otcRequest{
		Direction:     req.Side.String(),
		Size:          req.Size,
		OrderType:     "MARKET",
		DealReference: sanitizeReference(req.Reference),
	}

	var err error
	if req.Closing {
		otc.DealID = req.DealID
		err = c.doClose(ctx, otc)
	} else {
		otc.Epic = req.Epic
		otc.Expiry = "-"
		otc.ForceOpen = true
		if req.StopLoss > 0 {
			otc.StopLevel = &req.StopLoss
		}
		if req.TakeProfit > 0 {
			otc.LimitLevel = &req.TakeProfit
		}
		var resp dealReferenceResponse
		err = c.do(ctx, http.MethodPost, "/positions/otc", 2, otc, &resp)
	}
	if err != nil {
		if broker.IsTransport(err) {
			return broker.OrderResult{Reference: req.Reference, Status: broker.StatusError, Detail: err.Error(), Closing: req.Closing}, err
		}
		return broker.OrderResult{Reference: req.Reference, Status: broker.StatusRejected, Detail: err.Error(), Closing: req.Closing},
			&broker.RejectedError{Reason: err.Error()}
	}

	return c.confirm(ctx, req)
}

// doClose unwinds a deal. IG has no DELETE-with-body route; closes go
// through POST /positions/otc carrying a method override header.
func (c *Client) doClose(ctx context.Context, otc otcRequest) error {
	body, err := json.Marshal(otc)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/positions/otc", bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req, 1, true)
	req.Header.Set("_method", "DELETE")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &broker.TransportError{Op: "close position", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ig close position: status %d: %s", resp.StatusCode, apiErrorCode(resp.Body))
	}
	return nil
}

// confirm resolves the deal reference into a terminal order result.
func (c *Client) confirm(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	var conf confirmResponse
	if err := c.do(ctx, http.MethodGet, "/confirms/"+sanitizeReference(req.Reference), 1, nil, &conf); err != nil {
		if broker.IsTransport(err) {
			return broker.OrderResult{Reference: req.Reference, Status: broker.StatusError, Detail: err.Error(), Closing: req.Closing}, err
		}
		return broker.OrderResult{Reference: req.Reference, Status: broker.StatusError, Detail: err.Error(), Closing: req.Closing},
			&broker.TransportError{Op: "confirm", Err: err}
	}

	result := broker.OrderResult{
		Reference: req.Reference,
		DealID:    conf.DealID,
		FillPrice: conf.Level,
		FillSize:  conf.Size,
		Closing:   req.Closing,
	}
	switch conf.DealStatus {
	case "ACCEPTED":
		result.Status = broker.StatusFilled
		return result, nil
	default:
		result.Status = broker.StatusRejected
		result.Detail = conf.Reason
		return result, &broker.RejectedError{Reason: conf.Reason}
	}
}

// sanitizeReference fits a client reference into IG's dealReference
// constraints (alphanumeric, dash and underscore, max 30 chars).
func sanitizeReference(ref string) string {
	var b strings.Builder
	for _, r := range ref {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	s := b.String()
	if len(s) > 30 {
		s = s[:30]
	}
	return s
}
