package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"payguard/internal/platform/metrics"
	"payguard/pkg/platform/sentinel"
)

// Contract function names exposed by the staff-registry contract.
const (
	fnRegisterStaff      = "register_staff"
	fnRevokeStaff        = "revoke_staff"
	fnRecordPayrollBatch = "record_payroll_batch"
	fnIsStaffRegistered  = "is_staff_registered"
	fnIsBatchRecorded    = "is_batch_recorded"
	fnGetStaffRecord     = "get_staff_record"
	fnGetTotalStaff      = "get_total_staff"
)

// StaffRecord mirrors the on-chain staff entry.
type StaffRecord struct {
	StaffHash    string `json:"staffHash"`
	RegisteredBy string `json:"registeredBy"`
	RegisteredAt uint64 `json:"registeredAt"`
	IsActive     bool   `json:"isActive"`
}

// Client submits identity registrations and batch recordings to the
// staff-registry contract and answers advisory read-only queries.
//
// Write submissions follow built -> simulated -> signed -> broadcast and
// return a provisional unknown-pending receipt immediately: confirmation is
// reconciled in the background, never awaited here.
type Client struct {
	rpc      RPC
	account  *Account
	contract string
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// New wires a client against a contract identifier. The account is the
// process-wide signing singleton.
func New(rpc RPC, account *Account, contract string, log *zap.Logger, m *metrics.Metrics) (*Client, error) {
	if rpc == nil {
		return nil, fmt.Errorf("ledger client: rpc is required")
	}
	if account == nil {
		return nil, fmt.Errorf("ledger client: account is required")
	}
	if contract == "" {
		return nil, fmt.Errorf("ledger client: contract id is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{rpc: rpc, account: account, contract: contract, log: log, metrics: m}, nil
}

// RegisterStaff anchors an identity hash on-chain. Registering a hash that is
// already on-chain is a precondition failure (sentinel.ErrAlreadyRegistered),
// not a transport error.
func (c *Client) RegisterStaff(ctx context.Context, identityHash string) (Receipt, error) {
	if c.IsStaffRegistered(ctx, identityHash) {
		return Receipt{}, fmt.Errorf("register staff %s: %w", abbrev(identityHash), sentinel.ErrAlreadyRegistered)
	}
	arg, err := HashArg(identityHash)
	if err != nil {
		return Receipt{}, fmt.Errorf("register staff: %w", err)
	}
	return c.submit(ctx, fnRegisterStaff, []Arg{arg})
}

// RevokeStaff deactivates an identity on-chain. The off-chain record is never
// deleted; revocation only flips the active flag.
func (c *Client) RevokeStaff(ctx context.Context, identityHash string) (Receipt, error) {
	arg, err := HashArg(identityHash)
	if err != nil {
		return Receipt{}, fmt.Errorf("revoke staff: %w", err)
	}
	return c.submit(ctx, fnRevokeStaff, []Arg{arg})
}

// RecordBatch anchors a payroll batch hash and its record count. Re-recording
// a known hash surfaces sentinel.ErrAlreadyRecorded.
func (c *Client) RecordBatch(ctx context.Context, batchHash string, recordCount uint32) (Receipt, error) {
	if c.IsBatchRecorded(ctx, batchHash) {
		return Receipt{}, fmt.Errorf("record batch %s: %w", abbrev(batchHash), sentinel.ErrAlreadyRecorded)
	}
	arg, err := HashArg(batchHash)
	if err != nil {
		return Receipt{}, fmt.Errorf("record batch: %w", err)
	}
	return c.submit(ctx, fnRecordPayrollBatch, []Arg{arg, U32Arg(recordCount)})
}

// submit drives the write pipeline. Simulation failure aborts with the
// underlying error surfaced; a successful broadcast yields an
// unknown-pending receipt.
func (c *Client) submit(ctx context.Context, function string, args []Arg) (Receipt, error) {
	tx := &Transaction{
		Source:   c.account.Address(),
		Sequence: c.account.NextSequence(),
		Contract: c.contract,
		Function: function,
		Args:     args,
		state:    TxBuilt,
	}

	sim, err := c.rpc.Simulate(ctx, tx)
	if err != nil {
		c.countSubmission(function, "simulate_error")
		return Receipt{}, fmt.Errorf("%s: simulate: %w", function, err)
	}
	if sim.Err != "" {
		c.countSubmission(function, "simulate_rejected")
		return Receipt{}, fmt.Errorf("%s: simulation rejected: %s", function, sim.Err)
	}
	if err := tx.markSimulated(); err != nil {
		return Receipt{}, err
	}

	if err := tx.sign(c.account.Sign); err != nil {
		return Receipt{}, fmt.Errorf("%s: %w", function, err)
	}

	sent, err := c.rpc.Send(ctx, tx)
	if err != nil {
		c.countSubmission(function, "send_error")
		return Receipt{}, fmt.Errorf("%s: send: %w", function, err)
	}
	if err := tx.markBroadcast(); err != nil {
		return Receipt{}, err
	}

	c.countSubmission(function, "broadcast")
	c.log.Info("transaction broadcast",
		zap.String("function", function),
		zap.String("tx_hash", sent.Hash),
		zap.String("node_status", sent.Status))

	return Receipt{TxHash: sent.Hash, Status: StatusPending}, nil
}

// IsStaffRegistered is an advisory read. RPC failures degrade to false so
// callers can keep serving; the authoritative record is off-chain.
func (c *Client) IsStaffRegistered(ctx context.Context, identityHash string) bool {
	var registered bool
	if err := c.query(ctx, fnIsStaffRegistered, identityHash, &registered); err != nil {
		c.log.Warn("is_staff_registered query failed", zap.Error(err))
		return false
	}
	return registered
}

// IsBatchRecorded is an advisory read with the same degradation contract as
// IsStaffRegistered.
func (c *Client) IsBatchRecorded(ctx context.Context, batchHash string) bool {
	var recorded bool
	if err := c.query(ctx, fnIsBatchRecorded, batchHash, &recorded); err != nil {
		c.log.Warn("is_batch_recorded query failed", zap.Error(err))
		return false
	}
	return recorded
}

// GetStaffRecord fetches the on-chain entry for an identity hash. A nil
// record means unknown or unreachable.
func (c *Client) GetStaffRecord(ctx context.Context, identityHash string) *StaffRecord {
	var record StaffRecord
	if err := c.query(ctx, fnGetStaffRecord, identityHash, &record); err != nil {
		c.log.Warn("get_staff_record query failed", zap.Error(err))
		return nil
	}
	if record.StaffHash == "" {
		return nil
	}
	return &record
}

// GetTotalStaff returns the on-chain registration count, zero on any error.
func (c *Client) GetTotalStaff(ctx context.Context) uint32 {
	tx := &Transaction{
		Source:   c.account.Address(),
		Contract: c.contract,
		Function: fnGetTotalStaff,
		state:    TxBuilt,
	}
	sim, err := c.rpc.Simulate(ctx, tx)
	if err != nil || sim.Err != "" {
		return 0
	}
	var total uint32
	if err := json.Unmarshal(sim.Ret, &total); err != nil {
		return 0
	}
	return total
}

// query runs a read-only, simulate-only invocation. No sequence number is
// consumed and nothing is signed or broadcast.
func (c *Client) query(ctx context.Context, function, hexHash string, out any) error {
	arg, err := HashArg(hexHash)
	if err != nil {
		return fmt.Errorf("%s: %w", function, err)
	}
	tx := &Transaction{
		Source:   c.account.Address(),
		Contract: c.contract,
		Function: function,
		Args:     []Arg{arg},
		state:    TxBuilt,
	}
	sim, err := c.rpc.Simulate(ctx, tx)
	if err != nil {
		return fmt.Errorf("%s: %w", function, err)
	}
	if sim.Err != "" {
		return fmt.Errorf("%s: %s", function, sim.Err)
	}
	if len(sim.Ret) == 0 {
		return nil
	}
	if err := json.Unmarshal(sim.Ret, out); err != nil {
		return fmt.Errorf("%s: decode return: %w", function, err)
	}
	return nil
}

func (c *Client) countSubmission(function, outcome string) {
	if c.metrics != nil {
		c.metrics.LedgerSubmissions.WithLabelValues(function, outcome).Inc()
	}
}

func abbrev(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}
