/**
 * @description
 * State machines for commission and invoice records. Functions here take a
 * record by value and return the transitioned copy together with the
 * Transition event the caller publishes; persistence stays with the caller,
 * which applies the change with a conditional update on the From status.
 */
package workflow

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotInvoiceable    = errors.New("commission is not invoiceable yet")
	ErrInvalidPayment    = errors.New("invalid payment amount")
	ErrInvalidAmount     = errors.New("invalid invoice amount")
)

// DefaultDueDays is the payment term applied when an invoice is issued.
const DefaultDueDays = 30

// Transition describes one applied status change.
type Transition struct {
	Entity string    `json:"entity"`
	ID     string    `json:"id"`
	From   string    `json:"from"`
	To     string    `json:"to"`
	At     time.Time `json:"at"`
}

// TransitionError is returned when a record cannot move from its current status.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s %s -> %s", ErrInvalidTransition, e.Entity, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

func dueDate(from time.Time, days int) time.Time {
	if days <= 0 {
		days = DefaultDueDays
	}
	return from.AddDate(0, 0, days)
}
