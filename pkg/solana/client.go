package solana

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ybbus/jsonrpc"

	"github.com/code-payments/code-boost/pkg/rate"
)

type Commitment struct {
	Commitment string `json:"commitment"`
}

const (
	confirmationStatusProcessed = "processed"
	confirmationStatusConfirmed = "confirmed"
	confirmationStatusFinalized = "finalized"
)

var (
	CommitmentProcessed = Commitment{Commitment: confirmationStatusProcessed}
	CommitmentConfirmed = Commitment{Commitment: confirmationStatusConfirmed}
	CommitmentFinalized = Commitment{Commitment: confirmationStatusFinalized}
)

// CommitmentFromString parses a commitment level by name.
func CommitmentFromString(s string) (Commitment, error) {
	switch s {
	case confirmationStatusProcessed:
		return CommitmentProcessed, nil
	case confirmationStatusConfirmed:
		return CommitmentConfirmed, nil
	case confirmationStatusFinalized:
		return CommitmentFinalized, nil
	}
	return Commitment{}, errors.Errorf("unknown commitment %q", s)
}

var (
	ErrNoAccountInfo     = errors.New("no account info")
	ErrSignatureNotFound = errors.New("signature not found")
)

// AccountInfo contains the Solana account information (not to be confused with a TokenAccount)
type AccountInfo struct {
	Data       []byte
	Owner      ed25519.PublicKey
	Lamports   uint64
	Executable bool
}

// ProgramAccount is an account returned from a program scan.
type ProgramAccount struct {
	PublicKey ed25519.PublicKey
	Account   AccountInfo
}

// MemcmpFilter matches accounts whose data contains Bytes at Offset.
type MemcmpFilter struct {
	Offset uint
	Bytes  []byte
}

// Matches reports whether data satisfies the filter.
func (f MemcmpFilter) Matches(data []byte) bool {
	end := int(f.Offset) + len(f.Bytes)
	if end > len(data) {
		return false
	}
	return bytes.Equal(data[f.Offset:end], f.Bytes)
}

type SignatureStatus struct {
	Slot        uint64
	ErrorResult *TransactionError

	// Confirmations will be nil if the transaction has been rooted.
	Confirmations      *int
	ConfirmationStatus string
}

func (s SignatureStatus) Confirmed() bool {
	if s.Finalized() {
		return true
	}

	if s.ConfirmationStatus == confirmationStatusConfirmed {
		return true
	}

	return *s.Confirmations >= 1
}

func (s SignatureStatus) Finalized() bool {
	return s.Confirmations == nil || s.ConfirmationStatus == confirmationStatusFinalized
}

// Reached reports whether the status satisfies the commitment level.
func (s SignatureStatus) Reached(commitment Commitment) bool {
	switch commitment {
	case CommitmentProcessed:
		return true
	case CommitmentConfirmed:
		return s.Confirmed()
	case CommitmentFinalized:
		return s.Finalized()
	}
	return false
}

// Client provides an interaction with the Solana JSON RPC API.
//
// Every method is a single attempt. Callers own retry policy.
//
// Reference: https://docs.solana.com/apps/jsonrpc-api
type Client interface {
	GetAccountInfo(ctx context.Context, account ed25519.PublicKey, commitment Commitment) (AccountInfo, error)
	GetProgramAccounts(ctx context.Context, program ed25519.PublicKey, commitment Commitment, filters ...MemcmpFilter) ([]ProgramAccount, error)
	GetLatestBlockhash(ctx context.Context) (Blockhash, error)
	GetSignatureStatus(ctx context.Context, sig Signature) (*SignatureStatus, error)
	SubmitTransaction(ctx context.Context, signed []byte, commitment Commitment) (Signature, error)
}

type client struct {
	log     *logrus.Entry
	client  jsonrpc.RPCClient
	limiter rate.Limiter

	httpClient   *http.Client
	blockhashTTL time.Duration

	blockMu   sync.RWMutex
	blockhash Blockhash
	lastWrite time.Time
}

// Option configures the RPC client.
type Option func(*client)

// WithHTTPClient sets the HTTP client used for RPC calls.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *client) {
		c.httpClient = httpClient
	}
}

// WithRateLimiter limits outbound calls, keyed by RPC method.
func WithRateLimiter(limiter rate.Limiter) Option {
	return func(c *client) {
		c.limiter = limiter
	}
}

// WithLogger sets the log entry the client logs to.
func WithLogger(log *logrus.Entry) Option {
	return func(c *client) {
		c.log = log
	}
}

// WithBlockhashCache caches the latest blockhash for roughly ttl. A zero ttl
// disables caching.
func WithBlockhashCache(ttl time.Duration) Option {
	return func(c *client) {
		c.blockhashTTL = ttl
	}
}

// New returns a client using the specified endpoint.
func New(endpoint string, opts ...Option) Client {
	c := &client{
		log:          logrus.StandardLogger().WithField("type", "solana/client"),
		limiter:      &rate.NoLimiter{},
		blockhashTTL: 2 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}

	c.client = jsonrpc.NewClientWithOpts(endpoint, &jsonrpc.RPCClientOpts{
		HTTPClient: c.httpClient,
	})
	return c
}

func (c *client) call(ctx context.Context, out interface{}, method string, params ...interface{}) error {
	if err := c.limiter.Wait(ctx, method); err != nil {
		return err
	}

	// The transport has no context support, so a cancelled caller is only
	// observed between calls.
	if err := ctx.Err(); err != nil {
		return err
	}

	err := c.client.CallFor(out, method, params...)
	if err == nil {
		return nil
	}

	if rpcErr, ok := err.(*jsonrpc.RPCError); ok && IsTransientRPCError(rpcErr) {
		c.log.WithError(err).WithField("method", method).Warn("transient rpc failure")
	}
	return err
}

func (c *client) GetLatestBlockhash(ctx context.Context) (hash Blockhash, err error) {
	// To avoid having thrashing around a similar periodic interval, we
	// randomize when we refresh our block hash.
	window := time.Duration(float64(c.blockhashTTL) * (0.8 + 0.4*rand.Float64()))

	c.blockMu.RLock()
	if time.Since(c.lastWrite) < window {
		hash = c.blockhash
	}
	c.blockMu.RUnlock()

	if hash != (Blockhash{}) {
		return hash, nil
	}

	type response struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}

	// A lone struct argument would be sent as a params object, which nodes
	// reject.
	var resp response
	if err := c.call(ctx, &resp, "getLatestBlockhash", []interface{}{CommitmentConfirmed}); err != nil {
		return hash, errors.Wrapf(err, "getLatestBlockhash() failed to send request")
	}

	hashBytes, err := base58.Decode(resp.Value.Blockhash)
	if err != nil {
		return hash, errors.Wrap(err, "invalid base58 encoded hash in response")
	}
	if len(hashBytes) != len(hash) {
		return hash, errors.Errorf("invalid blockhash length %d", len(hashBytes))
	}

	copy(hash[:], hashBytes)

	c.blockMu.Lock()
	c.blockhash = hash
	c.lastWrite = time.Now()
	c.blockMu.Unlock()

	return hash, nil
}

type rpcAccount struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"`
	Executable bool     `json:"executable"`
}

func (a *rpcAccount) toAccountInfo() (accountInfo AccountInfo, err error) {
	accountInfo.Owner, err = base58.Decode(a.Owner)
	if err != nil {
		return accountInfo, errors.Wrap(err, "invalid base58 encoded owner")
	}

	if len(a.Data) == 0 {
		return accountInfo, errors.New("missing account data")
	}
	accountInfo.Data, err = base64.StdEncoding.DecodeString(a.Data[0])
	if err != nil {
		return accountInfo, errors.Wrap(err, "invalid base64 encoded data")
	}

	accountInfo.Lamports = a.Lamports
	accountInfo.Executable = a.Executable

	return accountInfo, nil
}

func (c *client) GetAccountInfo(ctx context.Context, account ed25519.PublicKey, commitment Commitment) (AccountInfo, error) {
	type rpcResponse struct {
		Value *rpcAccount `json:"value"`
	}

	rpcConfig := struct {
		Commitment string `json:"commitment"`
		Encoding   string `json:"encoding"`
	}{
		Commitment: commitment.Commitment,
		Encoding:   "base64",
	}

	var resp rpcResponse
	if err := c.call(ctx, &resp, "getAccountInfo", base58.Encode(account[:]), rpcConfig); err != nil {
		return AccountInfo{}, errors.Wrap(err, "getAccountInfo() failed to send request")
	}

	if resp.Value == nil {
		return AccountInfo{}, ErrNoAccountInfo
	}

	return resp.Value.toAccountInfo()
}

func (c *client) GetProgramAccounts(ctx context.Context, program ed25519.PublicKey, commitment Commitment, filters ...MemcmpFilter) ([]ProgramAccount, error) {
	type memcmpFilter struct {
		Offset uint   `json:"offset"`
		Bytes  string `json:"bytes"`
	}

	type filter struct {
		Memcmp memcmpFilter `json:"memcmp"`
	}

	config := struct {
		Commitment string   `json:"commitment"`
		Encoding   string   `json:"encoding"`
		Filters    []filter `json:"filters,omitempty"`
	}{
		Commitment: commitment.Commitment,
		Encoding:   "base64",
	}
	for _, f := range filters {
		config.Filters = append(config.Filters, filter{
			Memcmp: memcmpFilter{
				Offset: f.Offset,
				Bytes:  base58.Encode(f.Bytes),
			},
		})
	}

	var resp []struct {
		PubKey  string     `json:"pubkey"`
		Account rpcAccount `json:"account"`
	}
	if err := c.call(ctx, &resp, "getProgramAccounts", base58.Encode(program), config); err != nil {
		return nil, errors.Wrap(err, "getProgramAccounts() failed to send request")
	}

	res := make([]ProgramAccount, 0, len(resp))
	for _, result := range resp {
		pub, err := base58.Decode(result.PubKey)
		if err != nil {
			return nil, errors.Wrap(err, "invalid base58 encoded pubkey")
		}
		if len(pub) != ed25519.PublicKeySize {
			return nil, errors.Errorf("invalid pubkey length %d", len(pub))
		}

		info, err := result.Account.toAccountInfo()
		if err != nil {
			return nil, errors.Wrapf(err, "invalid account %s", result.PubKey)
		}

		res = append(res, ProgramAccount{
			PublicKey: pub,
			Account:   info,
		})
	}
	return res, nil
}

func (c *client) SubmitTransaction(ctx context.Context, signed []byte, commitment Commitment) (Signature, error) {
	config := struct {
		Encoding            string `json:"encoding"`
		SkipPreflight       bool   `json:"skipPreflight"`
		PreflightCommitment string `json:"preflightCommitment"`
	}{
		Encoding:            "base64",
		PreflightCommitment: commitment.Commitment,
	}

	var sigStr string
	if err := c.call(ctx, &sigStr, "sendTransaction", base64.StdEncoding.EncodeToString(signed), config); err != nil {
		return Signature{}, errors.Wrap(err, "sendTransaction() failed")
	}

	var sig Signature
	sigBytes, err := base58.Decode(sigStr)
	if err != nil {
		return sig, errors.Wrap(err, "invalid base58 encoded signature in response")
	}
	if len(sigBytes) != len(sig) {
		return sig, errors.Errorf("invalid signature length %d", len(sigBytes))
	}
	copy(sig[:], sigBytes)

	return sig, nil
}

// GetSignatureStatus returns the status of a transaction, or
// ErrSignatureNotFound if the node has not seen it.
func (c *client) GetSignatureStatus(ctx context.Context, sig Signature) (*SignatureStatus, error) {
	req := struct {
		SearchTransactionHistory bool `json:"searchTransactionHistory"`
	}{
		SearchTransactionHistory: true,
	}

	type signatureStatus struct {
		Slot               uint64          `json:"slot"`
		Confirmations      *int            `json:"confirmations"`
		ConfirmationStatus string          `json:"confirmationStatus"`
		Err                json.RawMessage `json:"err"`
	}

	type rpcResp struct {
		Context struct {
			Slot int `json:"slot"`
		} `json:"context"`
		Value []*signatureStatus `json:"value"`
	}

	var resp rpcResp
	if err := c.call(ctx, &resp, "getSignatureStatuses", []string{base58.Encode(sig[:])}, req); err != nil {
		return nil, errors.Wrap(err, "getSignatureStatuses() failed to send request")
	}

	if len(resp.Value) == 0 || resp.Value[0] == nil {
		return nil, ErrSignatureNotFound
	}

	v := resp.Value[0]
	status := &SignatureStatus{
		Slot:               v.Slot,
		Confirmations:      v.Confirmations,
		ConfirmationStatus: v.ConfirmationStatus,
	}

	if len(v.Err) > 0 && !bytes.Equal(v.Err, []byte("null")) {
		var txError interface{}
		d := json.NewDecoder(bytes.NewBuffer(v.Err))
		d.UseNumber()
		if err := d.Decode(&txError); err != nil {
			return nil, errors.Wrap(err, "failed to parse transaction result")
		}

		// An error we can't parse is still an on-chain failure, so the status
		// is kept with the unhandled error attached.
		var err error
		status.ErrorResult, err = ParseTransactionError(txError)
		if err != nil {
			c.log.WithError(err).WithField("err", string(v.Err)).Warn("unrecognized transaction error in signature status")
		}
	}

	return status, nil
}
