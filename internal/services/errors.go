package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel failures returned by the engines. Messages are suitable for
// direct display to the user.
var (
	// ErrNotAuthenticated is returned when an operation requires an acting
	// user and none was supplied. No store access happens in that case.
	ErrNotAuthenticated = errors.New("you must be signed in to perform this action")

	// ErrMissingReason is returned when a report is submitted with a blank
	// reason. No side effects occur.
	ErrMissingReason = errors.New("a reason is required to submit a report")
)

// StockIssue describes one line item that failed stock validation.
type StockIssue struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
	OutOfStock  bool   `json:"out_of_stock"`
}

func (i StockIssue) String() string {
	if i.OutOfStock {
		return fmt.Sprintf("%s is out of stock", i.ProductName)
	}
	return fmt.Sprintf("only %d of %s available (requested %d)", i.Available, i.ProductName, i.Requested)
}

// StockValidationError reports the line items whose requested quantity
// could not be satisfied. When returned, no order was persisted and no
// stock was mutated.
type StockValidationError struct {
	Items []StockIssue
}

func (e *StockValidationError) Error() string {
	msgs := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		msgs = append(msgs, item.String())
	}
	return "cannot place order: " + strings.Join(msgs, "; ")
}

// PersistenceError wraps a store failure with the operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
