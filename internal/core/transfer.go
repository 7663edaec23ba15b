package core

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Pseudo-accounts that money can move between and a savings plan.
const (
	FundSourceRemainingBudget = "Remaining Budget"
	FundSourceMainWallet      = "Main Wallet Account"
)

const (
	ActionRemainingBudgetSavings = "remaining_budget_savings"
	ActionMainWalletWithdrawal   = "main_wallet_withdrawal"
)

// TransferSource is the typed side-ledger category of a budget transfer.
type TransferSource string

const (
	TransferRemainingBudget TransferSource = "remaining_budget"
	TransferMainWallet      TransferSource = "main_wallet"
)

var (
	amountTokenRe   = regexp.MustCompile(`AMOUNT:([0-9]+(?:\.[0-9]+)?)\|`)
	amountDisplayRe = regexp.MustCompile(`(?:Saved|Withdrew) ₱([0-9,]+(?:\.[0-9]+)?)`)
)

// TransferSourceFor reports whether a transaction moves money to or from a
// pseudo-account. Only deposits from the remaining budget and withdrawals to
// the main wallet count.
func TransferSourceFor(t TransactionType, fundSource string) (TransferSource, bool) {
	switch {
	case t == Deposit && fundSource == FundSourceRemainingBudget:
		return TransferRemainingBudget, true
	case t == Withdraw && fundSource == FundSourceMainWallet:
		return TransferMainWallet, true
	default:
		return "", false
	}
}

func (s TransferSource) ActionType() string {
	if s == TransferMainWallet {
		return ActionMainWalletWithdrawal
	}
	return ActionRemainingBudgetSavings
}

// DescribeTransfer builds the activity description for a transfer. The
// leading AMOUNT token is machine readable; the rest is display text.
func DescribeTransfer(s TransferSource, amount Money, planID, txID string) string {
	if s == TransferMainWallet {
		return fmt.Sprintf("AMOUNT:%s|Withdrew %s from savings plan %s to Main Wallet (Transaction: %s)",
			amount, amount.Display(), planID, txID)
	}
	return fmt.Sprintf("AMOUNT:%s|Saved %s from Remaining Budget to savings plan %s (Transaction: %s)",
		amount, amount.Display(), planID, txID)
}

// ExtractTransferAmount reads the amount back out of a transfer description.
// The AMOUNT token wins; older rows only carry the formatted display text.
func ExtractTransferAmount(desc string) (Money, bool) {
	if m := amountTokenRe.FindStringSubmatch(desc); m != nil {
		return parseExtracted(m[1])
	}
	if m := amountDisplayRe.FindStringSubmatch(desc); m != nil {
		return parseExtracted(m[1])
	}
	return Money{}, false
}

func parseExtracted(s string) (Money, bool) {
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil || d.IsNegative() {
		return Money{}, false
	}
	return MoneyFromDecimal(d), true
}
