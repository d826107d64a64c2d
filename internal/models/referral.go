package models

import (
	"time"
)

// Referral - запись реферальной программы.
// Якорная (seed) запись пользователя хранит код и имеет пустой ReferredEmail,
// реальные рефералы используют тот же код с непустым email.
type Referral struct {
	ID            string    `json:"id"`
	ReferrerID    string    `json:"referrerId"`    // ID пользователя-владельца кода
	ReferredEmail string    `json:"referredEmail"` // нормализованный email приглашенного, "" для seed
	ReferralCode  string    `json:"referralCode"`
	Status        string    `json:"status"`       // pending, completed, rewarded, cancelled
	RewardAmount  int64     `json:"rewardAmount"` // в минимальных единицах валюты
	CreatedAt     time.Time `json:"createdAt"`
	CompletedAt   NullTime  `json:"completedAt"`
}

// IsSeed сообщает, является ли запись якорной записью кода.
func (r Referral) IsSeed() bool {
	return r.ReferredEmail == ""
}

// ReferralSummary - сводка по рефералам одного пользователя.
type ReferralSummary struct {
	ReferralCode   string `json:"referralCode,omitempty"`
	TotalReferrals int    `json:"totalReferrals"`
	Pending        int    `json:"pending"`
	Completed      int    `json:"completed"`
	Rewarded       int    `json:"rewarded"`
	Cancelled      int    `json:"cancelled"`
	TotalEarned    int64  `json:"totalEarned"`    // сумма по rewarded
	PendingRewards int64  `json:"pendingRewards"` // сумма по pending и completed
}
