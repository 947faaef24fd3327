package usecase

import (
	"fmt"
	"strings"

	"github.com/NasaVasa/shopalerts/internal/domain"
	"github.com/shopspring/decimal"
)

const currencySymbol = "₹"

func formatMoney(amount decimal.Decimal) string {
	return currencySymbol + amount.StringFixed(2)
}

func productURL(frontendURL string, productID uint) string {
	return fmt.Sprintf("%s/product/%d", strings.TrimRight(frontendURL, "/"), productID)
}

// buildAlertMessage renders the notification for a triggered alert from the
// product as it is now.
func buildAlertMessage(alert domain.Alert, product domain.Product, frontendURL string) (subject, body string) {
	var b strings.Builder

	switch alert.Kind {
	case domain.AlertKindPrice:
		target := decimal.Zero
		if alert.Price != nil {
			target = alert.Price.TargetPrice
		}
		savings := target.Sub(product.Price)
		if savings.IsNegative() {
			savings = decimal.Zero
		}
		subject = "Price Drop Alert: " + product.Name
		fmt.Fprintf(&b, "Price drop on %s!\n\n", product.Name)
		fmt.Fprintf(&b, "Target price: %s\n", formatMoney(target))
		fmt.Fprintf(&b, "Current price: %s\n", formatMoney(product.Price))
		fmt.Fprintf(&b, "You save: %s\n\n", formatMoney(savings))
		fmt.Fprintf(&b, "View product: %s\n", productURL(frontendURL, product.ID))
	default:
		subject = "Back in Stock: " + product.Name
		fmt.Fprintf(&b, "%s is back in stock!\n\n", product.Name)
		fmt.Fprintf(&b, "Price: %s\n", formatMoney(product.Price))
		fmt.Fprintf(&b, "Available quantity: %d\n\n", product.Quantity)
		fmt.Fprintf(&b, "Buy now: %s\n", productURL(frontendURL, product.ID))
	}

	b.WriteString("\nYou received this because you set up a " + string(alert.Kind) + " alert for this product. ")
	b.WriteString("Manage your alerts in your account settings.")
	return subject, b.String()
}

func buildTestMessage() (subject, body string) {
	return "Test Notification - Shop Alerts",
		"This is a test notification from the shop alert system.\n" +
			"If you received it, notification delivery is working. No action is required."
}
