package domain

// NotificationType classifies a notification
type NotificationType string

const (
	NotifyCoinReward   NotificationType = "coin_reward"  // Claimable coin grant
	NotifyAnnouncement NotificationType = "announcement" // General announcement (welcome message, news)
	NotifyWarning      NotificationType = "warning"      // Something negative happened to the account
	NotifyInfo         NotificationType = "info"         // Informational message
)

// Valid reports whether t is a known notification type
func (t NotificationType) Valid() bool {
	switch t {
	case NotifyCoinReward, NotifyAnnouncement, NotifyWarning, NotifyInfo:
		return true
	}
	return false
}

// Claimable reports whether notifications of this type carry a claim step
func (t NotificationType) Claimable() bool {
	switch t {
	case NotifyCoinReward:
		return true
	case NotifyAnnouncement, NotifyWarning, NotifyInfo:
		return false
	}
	return false
}

// Notification Model
type Notification struct {
	ID          string           `gorm:"primaryKey;size:26" json:"id"`                                                    // ULID, time ordered
	AccountID   string           `gorm:"size:36;not null;index:idx_notif_account_created,priority:1" json:"account_id"` // Owner account
	BroadcastID *string          `gorm:"size:26;index" json:"broadcast_id,omitempty"`                                   // Shared by every copy of a broadcast
	Type        NotificationType `gorm:"size:32;not null" json:"type"`
	Title       string           `gorm:"size:255;not null" json:"title"`
	Message     string           `gorm:"type:text" json:"message"`
	Amount      int64            `gorm:"not null;default:0" json:"amount"`       // Only meaningful for coin_reward
	Claimed     bool             `gorm:"not null;default:false" json:"claimed"` // Only meaningful for coin_reward
	Read        bool             `gorm:"not null;default:false" json:"read"`
	CreatedAt   int64            `gorm:"not null;index:idx_notif_account_created,priority:2,sort:desc" json:"created_at"` // Unix milliseconds
}

// Pending reports whether the notification is an unclaimed reward
func (n *Notification) Pending() bool {
	return n.Type.Claimable() && !n.Claimed
}
