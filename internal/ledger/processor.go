package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/payments-engine/internal/interfaces"
	"github.com/sheikh-saqib/payments-engine/internal/models"
)

// Processor is the state machine of one client account.
// It owns the account and the client's ledger store, and must only be
// driven from a single goroutine. A rejected transaction leaves both untouched.
type Processor struct {
	account models.Account
	store   interfaces.LedgerStore
}

// NewProcessor creates a zero balance account for clientID backed by store.
func NewProcessor(clientID uint16, store interfaces.LedgerStore) *Processor {
	return &Processor{
		account: models.NewAccount(clientID),
		store:   store,
	}
}

// Account returns a copy of the current account state.
func (p *Processor) Account() models.Account {
	return p.account
}

// Apply runs one transaction against the account.
// A non-nil error means the transaction was dropped; see Reason.
func (p *Processor) Apply(tx models.Transaction) error {
	if tx.ClientID != p.account.ClientID {
		return fmt.Errorf("%s tx %d for client %d: %w", tx.Kind, tx.TxID, tx.ClientID, ErrClientMismatch)
	}
	if p.account.Locked {
		return fmt.Errorf("%s tx %d: %w", tx.Kind, tx.TxID, ErrAccountLocked)
	}

	var err error
	switch tx.Kind {
	case models.KindDeposit:
		err = p.deposit(tx)
	case models.KindWithdrawal:
		err = p.withdraw(tx)
	case models.KindDispute:
		err = p.dispute(tx)
	case models.KindResolve:
		err = p.resolve(tx)
	case models.KindChargeback:
		err = p.chargeback(tx)
	default:
		err = ErrUnknownKind
	}
	if err != nil {
		return fmt.Errorf("%s tx %d: %w", tx.Kind, tx.TxID, err)
	}
	return nil
}

func amountOf(tx models.Transaction) (decimal.Decimal, error) {
	if !tx.Amount.Valid {
		return decimal.Zero, ErrMissingAmount
	}
	if !tx.Amount.Decimal.IsPositive() {
		return decimal.Zero, ErrNonPositiveAmount
	}
	return tx.Amount.Decimal, nil
}

func (p *Processor) deposit(tx models.Transaction) error {
	amount, err := amountOf(tx)
	if err != nil {
		return err
	}
	if _, exists := p.store.Get(tx.TxID); exists {
		return ErrDuplicateTransaction
	}

	entry := models.LedgerEntry{
		TxID:     tx.TxID,
		ClientID: p.account.ClientID,
		Amount:   amount,
		State:    models.EntryPosted,
	}
	if err := p.store.Insert(entry); err != nil {
		return fmt.Errorf("%w: %w", ErrDuplicateTransaction, err)
	}
	p.account.Available = p.account.Available.Add(amount)
	return nil
}

func (p *Processor) withdraw(tx models.Transaction) error {
	amount, err := amountOf(tx)
	if err != nil {
		return err
	}
	if amount.GreaterThan(p.account.Available) {
		return ErrInsufficientFunds
	}
	p.account.Available = p.account.Available.Sub(amount)
	return nil
}

// disputedEntry looks up the deposit a dispute, resolve or chargeback refers to.
func (p *Processor) disputedEntry(txID uint32) (models.LedgerEntry, error) {
	entry, ok := p.store.Get(txID)
	if !ok {
		return models.LedgerEntry{}, ErrUnknownTransaction
	}
	if entry.ClientID != p.account.ClientID {
		return models.LedgerEntry{}, ErrClientMismatch
	}
	return entry, nil
}

// dispute may be repeated on an entry that is already disputed or resolved;
// each time it moves the amount from available to held again.
func (p *Processor) dispute(tx models.Transaction) error {
	entry, err := p.disputedEntry(tx.TxID)
	if err != nil {
		return err
	}
	if entry.State == models.EntryChargedBack {
		return ErrInvalidEntryState
	}
	if entry.Amount.GreaterThan(p.account.Available) {
		return ErrInsufficientFunds
	}
	if err := p.store.SetState(entry.TxID, models.EntryDisputed); err != nil {
		return err
	}
	p.account.Available = p.account.Available.Sub(entry.Amount)
	p.account.Held = p.account.Held.Add(entry.Amount)
	return nil
}

func (p *Processor) settle(tx models.Transaction, state models.EntryState) (models.LedgerEntry, error) {
	entry, err := p.disputedEntry(tx.TxID)
	if err != nil {
		return entry, err
	}
	if entry.State != models.EntryDisputed {
		return entry, ErrNotDisputed
	}
	if entry.Amount.GreaterThan(p.account.Held) {
		return entry, ErrInsufficientHeld
	}
	if err := p.store.SetState(entry.TxID, state); err != nil {
		return entry, err
	}
	return entry, nil
}

func (p *Processor) resolve(tx models.Transaction) error {
	entry, err := p.settle(tx, models.EntryResolved)
	if err != nil {
		return err
	}
	p.account.Held = p.account.Held.Sub(entry.Amount)
	p.account.Available = p.account.Available.Add(entry.Amount)
	return nil
}

func (p *Processor) chargeback(tx models.Transaction) error {
	entry, err := p.settle(tx, models.EntryChargedBack)
	if err != nil {
		return err
	}
	p.account.Held = p.account.Held.Sub(entry.Amount)
	p.account.Locked = true
	return nil
}
