package telegram

import (
	"errors"
	"strconv"
	"strings"

	"github.com/NasaVasa/shopalerts/internal/domain"
	"github.com/shopspring/decimal"
)

const HelpText = `Commands:
/start - register
/help - show this help
/price_alert <product_id> <target_price> - alert when the price drops to the target
/stock_alert <product_id> [threshold] - alert when stock rises above the threshold (default 0)
/alerts - list your active alerts
/disable <price|stock> <alert_id>
/delete <price|stock> <alert_id>
/stats - alert counts
/email <address|off> - also receive alerts by email, or stop

Example:
/price_alert 12 949.50
/stock_alert 12
`

var ErrInvalidArguments = errors.New("invalid arguments")

func ParsePriceAlertArgs(args string) (productID uint, target decimal.Decimal, err error) {
	parts := strings.Fields(args)
	if len(parts) != 2 {
		return 0, decimal.Zero, ErrInvalidArguments
	}
	productID, err = parseID(parts[0])
	if err != nil {
		return 0, decimal.Zero, err
	}
	target, err = decimal.NewFromString(parts[1])
	if err != nil {
		return 0, decimal.Zero, ErrInvalidArguments
	}
	return productID, target, nil
}

func ParseStockAlertArgs(args string) (productID uint, threshold int, err error) {
	parts := strings.Fields(args)
	if len(parts) < 1 || len(parts) > 2 {
		return 0, 0, ErrInvalidArguments
	}
	productID, err = parseID(parts[0])
	if err != nil {
		return 0, 0, err
	}
	if len(parts) == 2 {
		threshold, err = strconv.Atoi(parts[1])
		if err != nil {
			return 0, 0, ErrInvalidArguments
		}
	}
	return productID, threshold, nil
}

// ParseAlertRef parses "<price|stock> <alert_id>".
func ParseAlertRef(args string) (domain.AlertKind, uint, error) {
	parts := strings.Fields(args)
	if len(parts) != 2 {
		return "", 0, ErrInvalidArguments
	}
	kind, err := domain.ParseAlertKind(strings.ToLower(parts[0]))
	if err != nil {
		return "", 0, ErrInvalidArguments
	}
	alertID, err := parseID(parts[1])
	if err != nil {
		return "", 0, err
	}
	return kind, alertID, nil
}

// ParseEmailArgs parses "<address>" or "off". Off is returned as an empty
// address.
func ParseEmailArgs(args string) (string, error) {
	parts := strings.Fields(args)
	if len(parts) != 1 {
		return "", ErrInvalidArguments
	}
	if strings.EqualFold(parts[0], "off") {
		return "", nil
	}
	return parts[0], nil
}

func parseID(value string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(value), "#"), 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidArguments
	}
	return uint(id), nil
}
