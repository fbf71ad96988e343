package domain

import (
	"time"
)

// Ticket status constants. A ticket is created PAID and may only move to
// CANCELED, never back.
const (
	TicketStatusPaid     = "PAID"
	TicketStatusCanceled = "CANCELED"
)

// Privilege tier constants. The tier is derived from historical spend by the
// privilege service; the gateway never computes it.
const (
	PrivilegeStatusBronze = "BRONZE"
	PrivilegeStatusSilver = "SILVER"
	PrivilegeStatusGold   = "GOLD"
)

// Privilege history operation types.
const (
	OperationFillInBalance   = "FILL_IN_BALANCE"
	OperationDebitTheAccount = "DEBIT_THE_ACCOUNT"
)

// Flight is an immutable catalog entry owned by the flight service.
type Flight struct {
	FlightNumber string    `json:"flightNumber"`
	FromAirport  string    `json:"fromAirport"`
	ToAirport    string    `json:"toAirport"`
	Date         time.Time `json:"date"`
	Price        int       `json:"price"`
}

// Ticket is a ticket ledger record. TicketUID is chosen by the gateway at
// purchase time and is the correlation key across all three leaf services.
type Ticket struct {
	TicketUID    string `json:"ticketUid"`
	Username     string `json:"username"`
	FlightNumber string `json:"flightNumber"`
	Price        int    `json:"price"`
	Status       string `json:"status"`
}

// TicketView is a user-facing ticket enriched with flight details.
type TicketView struct {
	TicketUID    string    `json:"ticketUid"`
	FlightNumber string    `json:"flightNumber"`
	FromAirport  string    `json:"fromAirport"`
	ToAirport    string    `json:"toAirport"`
	Date         time.Time `json:"date"`
	Price        int       `json:"price"`
	Status       string    `json:"status"`
}

// Privilege is the loyalty account snapshot for a user. The zero value is a
// fresh BRONZE account with no points, which is what the gateway assumes when
// the privilege service has never seen the user.
type Privilege struct {
	Balance int    `json:"balance"`
	Status  string `json:"status"`
}

// FreshPrivilege returns the account state assumed for an unknown user.
func FreshPrivilege() Privilege {
	return Privilege{Balance: 0, Status: PrivilegeStatusBronze}
}

// PrivilegeHistoryEntry is an append-only balance change record. There is at
// most one entry per ticketUid: it is the key used to reverse a debit when a
// ticket is cancelled.
type PrivilegeHistoryEntry struct {
	TicketUID     string    `json:"ticketUid"`
	Date          time.Time `json:"date"`
	BalanceDiff   int       `json:"balanceDiff"`
	OperationType string    `json:"operationType"`
}

// PrivilegeInfo bundles the account snapshot with its full history.
type PrivilegeInfo struct {
	Balance int                     `json:"balance"`
	Status  string                  `json:"status"`
	History []PrivilegeHistoryEntry `json:"history"`
}

// PaymentSplit is how a ticket's price is divided between money and bonus
// points.
type PaymentSplit struct {
	PaidByMoney   int `json:"paidByMoney"`
	PaidByBonuses int `json:"paidByBonuses"`
}

// ComputeSplit decides the money/bonus split for a purchase. When the caller
// does not pay from balance the whole price is money. Otherwise bonus points
// cover as much of the price as the balance allows and money covers the rest.
func ComputeSplit(price, balance int, paidFromBalance bool) PaymentSplit {
	if !paidFromBalance {
		return PaymentSplit{PaidByMoney: price, PaidByBonuses: 0}
	}
	bonuses := balance
	if bonuses > price {
		bonuses = price
	}
	return PaymentSplit{
		PaidByMoney:   price - bonuses,
		PaidByBonuses: bonuses,
	}
}

// PurchaseResult is returned to the caller after a successful purchase saga.
type PurchaseResult struct {
	TicketUID     string    `json:"ticketUid"`
	FlightNumber  string    `json:"flightNumber"`
	FromAirport   string    `json:"fromAirport"`
	ToAirport     string    `json:"toAirport"`
	Date          time.Time `json:"date"`
	Price         int       `json:"price"`
	PaidByMoney   int       `json:"paidByMoney"`
	PaidByBonuses int       `json:"paidByBonuses"`
	Status        string    `json:"status"`
	Privilege     Privilege `json:"privilege"`
}

// UserProfile aggregates a user's tickets with their privilege snapshot.
type UserProfile struct {
	Tickets   []TicketView `json:"tickets"`
	Privilege Privilege    `json:"privilege"`
}
