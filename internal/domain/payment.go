package domain

import "time"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentConfirmed PaymentStatus = "CONFIRMED"
	PaymentRejected  PaymentStatus = "REJECTED"
	// PaymentReviewing is part of the wire vocabulary but no transition reaches it.
	PaymentReviewing PaymentStatus = "REVIEWING"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentConfirmed, PaymentRejected, PaymentReviewing:
		return true
	default:
		return false
	}
}

type WalletType string

const (
	WalletZainCash WalletType = "ZainCash"
	WalletAsiaCell WalletType = "AsiaCell"
	WalletQiCard   WalletType = "QiCard"
)

// Wallets lists the accepted mobile wallets in display order.
func Wallets() []WalletType {
	return []WalletType{WalletZainCash, WalletAsiaCell, WalletQiCard}
}

func (w WalletType) Valid() bool {
	for _, known := range Wallets() {
		if w == known {
			return true
		}
	}
	return false
}

// PaymentRequest is a student's claim of an out-of-band wallet transfer.
type PaymentRequest struct {
	ID              string        `json:"id"`
	UserID          string        `json:"userId"`
	UserName        string        `json:"userName"`
	UserPhone       string        `json:"userPhone"`
	PlanID          string        `json:"planId,omitempty"`
	PlanName        string        `json:"planName"`
	Amount          int64         `json:"amount"`
	WalletType      WalletType    `json:"walletType"`
	TransactionID   string        `json:"transactionId"`
	Status          PaymentStatus `json:"status"`
	Date            time.Time     `json:"date"`
	RejectionReason string        `json:"rejectReason,omitempty"`
}
