package domain

// TransactionType classifies a balance-affecting event
type TransactionType string

const (
	TxPurchase         TransactionType = "purchase"          // Coins bought through the payment collaborator
	TxUsage            TransactionType = "usage"             // Billed third-party API call
	TxTransferSent     TransactionType = "transfer_sent"     // Sender side of a transfer
	TxTransferReceived TransactionType = "transfer_received" // Recipient side of a transfer
	TxSignupBonus      TransactionType = "signup_bonus"      // Welcome coins at account creation
	TxReferral         TransactionType = "referral"          // Bonus paid to a referrer
	TxAdminCredit      TransactionType = "admin_credit"      // Claimed admin reward
	TxAdminDeduct      TransactionType = "admin_deduct"      // Immediate admin deduction
)

// TransactionTypes lists every known transaction type
var TransactionTypes = []TransactionType{
	TxPurchase,
	TxUsage,
	TxTransferSent,
	TxTransferReceived,
	TxSignupBonus,
	TxReferral,
	TxAdminCredit,
	TxAdminDeduct,
}

// Valid reports whether t is a known transaction type
func (t TransactionType) Valid() bool {
	return t.Sign() != 0
}

// Sign returns +1 for types that add coins, -1 for types that remove them and 0 for unknown types
func (t TransactionType) Sign() int64 {
	switch t {
	case TxPurchase, TxTransferReceived, TxSignupBonus, TxReferral, TxAdminCredit:
		return 1
	case TxUsage, TxTransferSent, TxAdminDeduct:
		return -1
	}
	return 0
}

// Label returns a human readable name for the type
func (t TransactionType) Label() string {
	switch t {
	case TxPurchase:
		return "Coin purchase"
	case TxUsage:
		return "API usage"
	case TxTransferSent:
		return "Transfer sent"
	case TxTransferReceived:
		return "Transfer received"
	case TxSignupBonus:
		return "Signup bonus"
	case TxReferral:
		return "Referral bonus"
	case TxAdminCredit:
		return "Admin credit"
	case TxAdminDeduct:
		return "Admin deduction"
	}
	return "Unknown"
}

// Transaction Model
//
// Rows are append-only: the ledger never updates or deletes a single transaction, only
// account deletion removes them together with their owner.
type Transaction struct {
	ID             string          `gorm:"primaryKey;size:26" json:"id"`                                             // ULID, time ordered
	AccountID      string          `gorm:"size:36;not null;index:idx_tx_account_created,priority:1" json:"account_id"` // Owner account
	Type           TransactionType `gorm:"size:32;not null;index" json:"type"`                                       // Transaction type
	Amount         int64           `gorm:"not null" json:"amount"`                                                   // Signed coin delta
	Description    string          `gorm:"size:255" json:"description"`                                              // Human readable metadata
	Counterparty   string          `gorm:"size:255" json:"counterparty,omitempty"`                                   // Other side of a transfer
	NotificationID *string         `gorm:"size:26;index" json:"notification_id,omitempty"`                           // Reward notification that produced this credit
	CreatedAt      int64           `gorm:"not null;index:idx_tx_account_created,priority:2,sort:desc" json:"created_at"` // Unix milliseconds
}
