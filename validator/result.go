// Package validator implements stateless and chain-contextual
// validation of blocks and transactions: one function per invariant,
// feeding into a single closed result type. There is no spending
// script to execute here — transfers and pages authorize only with a
// signature check against an account balance.
package validator

import "github.com/dagchain/pagechain/crypto"

// Result is the closed set of outcomes block validation can report.
type Result struct {
	Code   ResultCode
	Reason string         // populated for Transaction results
	Addr   crypto.Address // populated for Balance results
}

// ResultCode enumerates block validation outcomes.
type ResultCode int

const (
	ResultOk ResultCode = iota
	ResultNotNextBlock
	ResultPrevHash
	ResultTimestamp
	ResultPOW
	ResultTarget
	ResultTransaction
	ResultBalance
)

// Ok is the successful validation result.
var Ok = Result{Code: ResultOk}

// NotNextBlock reports a block_id that doesn't extend the canonical tip.
func NotNextBlock() Result { return Result{Code: ResultNotNextBlock} }

// PrevHash reports a prev_hash mismatch against the canonical parent.
func PrevHash() Result { return Result{Code: ResultPrevHash} }

// Timestamp reports a timestamp that precedes the parent block or
// lies in the future.
func Timestamp() Result { return Result{Code: ResultTimestamp} }

// POW reports a failed proof-of-work check.
func POW() Result { return Result{Code: ResultPOW} }

// Target reports a target that doesn't match the expected retarget.
func Target() Result { return Result{Code: ResultTarget} }

// Transaction reports a transaction-level validation failure.
func Transaction(reason string) Result { return Result{Code: ResultTransaction, Reason: reason} }

// Balance reports a post-application negative balance for addr, which
// triggers purging addr's pending queue entries.
func Balance(addr crypto.Address) Result { return Result{Code: ResultBalance, Addr: addr} }

// IsOk reports whether the result represents successful validation.
func (r Result) IsOk() bool { return r.Code == ResultOk }

func (c ResultCode) String() string {
	switch c {
	case ResultOk:
		return "Ok"
	case ResultNotNextBlock:
		return "NotNextBlock"
	case ResultPrevHash:
		return "PrevHash"
	case ResultTimestamp:
		return "Timestamp"
	case ResultPOW:
		return "POW"
	case ResultTarget:
		return "Target"
	case ResultTransaction:
		return "Transaction"
	case ResultBalance:
		return "Balance"
	default:
		return "Unknown"
	}
}
