package notify

import (
	"fmt"
	"time"

	"github.com/prn-tf/stockwarden/internal/domain"
)

// OTPMessage builds the one-time password email.
func OTPMessage(to, code string, validFor time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Inventory System: One-Time Password (OTP) for Verification",
		Body: fmt.Sprintf("Your one-time password (OTP) is: %s\nThis code is valid for %d minutes.",
			code, int(validFor.Minutes())),
	}
}

// VerificationMessage builds the email carrying an email verification token.
func VerificationMessage(to, fullName, token string, validFor time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Inventory System: Verify your email address",
		Body: fmt.Sprintf("Hello %s,\n\nYour verification token is: %s\nIt expires in %d hours.",
			fullName, token, int(validFor.Hours())),
	}
}

// LowStockMessage builds the low-stock alert for product p.
func LowStockMessage(to string, p domain.Product, threshold int) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("LOW STOCK ALERT: %s (%s)", p.Name, p.ID),
		Body: fmt.Sprintf("The stock level for product '%s' (ID: %s) has dropped to %d units.\n"+
			"The defined threshold limit is %d units.\n\n"+
			"Please place a new order with supplier %s immediately.",
			p.Name, p.ID, p.Quantity, threshold, p.Supplier),
	}
}

// ReportMessage builds the inventory report email with the CSV attached.
func ReportMessage(to string, date time.Time, attachmentPath string) Message {
	day := date.Format(domain.DateLayout)
	return Message{
		To:             to,
		Subject:        "Inventory Report - " + day,
		Body:           fmt.Sprintf("Attached is the inventory report generated on %s.", day),
		AttachmentPath: attachmentPath,
	}
}
