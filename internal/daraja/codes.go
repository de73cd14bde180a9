package daraja

import "github.com/auripay/auripay-backend/internal/models"

// Gateway result codes seen on STK query and settlement callbacks.
const (
	CodeSuccess           = "0"
	CodeInsufficientFunds = "1"
	CodeCancelledByUser   = "1032"
)

// StatusForResultCode maps a gateway result code to a ledger status.
// Any unmapped non-zero code is a generic failure; the gateway's own
// description travels with the transaction for display.
func StatusForResultCode(code string) models.TransactionStatus {
	switch code {
	case CodeSuccess:
		return models.TxnSuccess
	case CodeCancelledByUser:
		return models.TxnCancelled
	default:
		return models.TxnFailed
	}
}
